// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package types

import "fmt"

// Hook identifies the attach point a counter array belongs to.
// The numeric values are shared with the dataplane programs.
type Hook uint32

const (
	HookIngress Hook = 0
	HookEgress  Hook = 1
	HookXDP     Hook = 2
)

// Hooks lists every hook in key order.
var Hooks = [...]Hook{HookIngress, HookEgress, HookXDP}

func (h Hook) String() string {
	switch h {
	case HookIngress:
		return "ingress"
	case HookEgress:
		return "egress"
	case HookXDP:
		return "xdp"
	default:
		return fmt.Sprintf("hook(%d)", uint32(h))
	}
}

// CounterKey matches struct counters_key: {__u32 ifindex; __u32 hook}.
type CounterKey struct {
	Ifindex uint32
	Hook    Hook
}

func (k CounterKey) String() string {
	return fmt.Sprintf("%d/%s", k.Ifindex, k.Hook)
}

// HookFlags describes which program is executing. Several bits may be
// set at once; KeyFor resolves them to a single Hook.
type HookFlags uint8

const (
	FlagXDP HookFlags = 1 << iota
	FlagToHEP
	FlagFromHEP
	FlagToWEP
	FlagFromWEP
)

const (
	// CounterKeySize is the size of CounterKey in the map.
	CounterKeySize = 8
	// CounterValueSize is the size of one CPU's Counters in the map.
	CounterValueSize = 8 * MaxCounters
)
