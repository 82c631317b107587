// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package collector

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/hook-counters-ebpf/internal/types"
)

// Dump writes one table per interface with a column per hook. Counters
// that are zero on every hook are skipped unless all is set.
func Dump(w io.Writer, entries []types.Entry, ifName func(ifindex int) string, all bool) error {
	byIface := make(map[uint32]map[types.Hook]types.Counters)
	for _, e := range entries {
		hooks, ok := byIface[e.Key.Ifindex]
		if !ok {
			hooks = make(map[types.Hook]types.Counters)
			byIface[e.Key.Ifindex] = hooks
		}
		hooks[e.Key.Hook] = types.Sum(e.PerCPU)
	}

	ifindexes := make([]uint32, 0, len(byIface))
	for ifindex := range byIface {
		ifindexes = append(ifindexes, ifindex)
	}
	sort.Slice(ifindexes, func(i, j int) bool { return ifindexes[i] < ifindexes[j] })

	if len(ifindexes) == 0 {
		_, err := fmt.Fprintln(w, "no counters")
		return err
	}

	for i, ifindex := range ifindexes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "interface %s (index %d)\n", ifName(int(ifindex)), ifindex)

		hooks := byIface[ifindex]
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "COUNTER\t")
		for _, h := range types.Hooks {
			fmt.Fprintf(tw, "%s\t", h)
		}
		fmt.Fprintln(tw)

		for slot := types.Counter(0); slot < types.MaxCounters; slot++ {
			zero := true
			for _, h := range types.Hooks {
				if c, ok := hooks[h]; ok && c[slot] != 0 {
					zero = false
				}
			}
			if zero && !all {
				continue
			}
			fmt.Fprintf(tw, "%s\t", slot.Description())
			for _, h := range types.Hooks {
				if c, ok := hooks[h]; ok {
					fmt.Fprintf(tw, "%d\t", c[slot])
				} else {
					fmt.Fprint(tw, "-\t")
				}
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// IfName resolves an ifindex to a printable name.
func IfName(ifindex int) string {
	if name, ok := systemInterfaceByIndex(ifindex); ok {
		return name
	}
	return fmt.Sprintf("%d", ifindex)
}
