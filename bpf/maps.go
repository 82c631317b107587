// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

// Package bpf holds the definitions of the maps shared with the dataplane
// programs. The programs themselves are loaded and attached elsewhere.
package bpf

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/hook-counters-ebpf/internal/types"
)

const (
	// CountersMapName is the pinned name of the counters map.
	CountersMapName = "cali_counters"
	// DefaultCountersMaxEntries covers ingress and egress of 10000 interfaces.
	DefaultCountersMaxEntries = 20000
)

// CountersMapSpec returns the spec of the per-CPU counters map.
// If maxEntries is 0, DefaultCountersMaxEntries is used.
func CountersMapSpec(maxEntries uint32) *ebpf.MapSpec {
	if maxEntries == 0 {
		maxEntries = DefaultCountersMaxEntries
	}
	return &ebpf.MapSpec{
		Name:       CountersMapName,
		Type:       ebpf.PerCPUHash,
		KeySize:    types.CounterKeySize,
		ValueSize:  types.CounterValueSize,
		MaxEntries: maxEntries,
		Pinning:    ebpf.PinByName,
	}
}

// LoadCountersMap creates the counters map pinned under pinDir, or reuses
// the pinned one if it is compatible.
func LoadCountersMap(pinDir string, maxEntries uint32) (*ebpf.Map, error) {
	spec := CountersMapSpec(maxEntries)
	m, err := ebpf.NewMapWithOptions(spec, ebpf.MapOptions{PinPath: pinDir})
	if err != nil {
		return nil, fmt.Errorf("load map %s from %s: %w", spec.Name, pinDir, err)
	}
	return m, nil
}
