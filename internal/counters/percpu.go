// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package counters

import (
	"fmt"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/hook-counters-ebpf/internal/types"
	"golang.org/x/sys/unix"
)

// PerCPUMap is an in-memory per-CPU hash with the semantics of a
// BPF_MAP_TYPE_PERCPU_HASH counters map. Every entry holds one replica per
// CPU. mu guards the key table only; a replica is written by its own CPU
// without synchronisation, so user-space reads may observe torn arrays.
type PerCPUMap struct {
	mu         sync.RWMutex
	numCPU     int
	maxEntries int
	entries    map[types.CounterKey][]types.Counters
}

func NewPerCPUMap(numCPU, maxEntries int) (*PerCPUMap, error) {
	if numCPU <= 0 {
		return nil, fmt.Errorf("number of CPUs must be > 0, got %d", numCPU)
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be > 0, got %d", maxEntries)
	}
	return &PerCPUMap{
		numCPU:     numCPU,
		maxEntries: maxEntries,
		entries:    make(map[types.CounterKey][]types.Counters),
	}, nil
}

// CPU returns the view of the map a program running on cpu gets.
func (m *PerCPUMap) CPU(cpu int) Store {
	if cpu < 0 || cpu >= m.numCPU {
		panic(fmt.Sprintf("cpu %d out of range [0, %d)", cpu, m.numCPU))
	}
	return cpuView{m: m, cpu: cpu}
}

func (m *PerCPUMap) NumCPU() int     { return m.numCPU }
func (m *PerCPUMap) MaxEntries() int { return m.maxEntries }

func (m *PerCPUMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of every entry with all its CPU replicas.
func (m *PerCPUMap) Entries() ([]types.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Entry, 0, len(m.entries))
	for k, replicas := range m.entries {
		out = append(out, types.Entry{
			Key:    k,
			PerCPU: append([]types.Counters(nil), replicas...),
		})
	}
	return out, nil
}

// Delete removes key and every replica of its value.
func (m *PerCPUMap) Delete(key types.CounterKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, ebpf.ErrKeyNotExist)
	}
	delete(m.entries, key)
	return nil
}

type cpuView struct {
	m   *PerCPUMap
	cpu int
}

func (v cpuView) Lookup(key types.CounterKey) *types.Counters {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	replicas, ok := v.m.entries[key]
	if !ok {
		return nil
	}
	return &replicas[v.cpu]
}

// Update writes value into this CPU's replica. Creating an entry zeroes
// the replicas of all other CPUs.
func (v cpuView) Update(key types.CounterKey, value *types.Counters, flags ebpf.MapUpdateFlags) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	replicas, ok := v.m.entries[key]
	switch flags {
	case ebpf.UpdateAny:
	case ebpf.UpdateNoExist:
		if ok {
			return fmt.Errorf("update %s: %w", key, ebpf.ErrKeyExist)
		}
	case ebpf.UpdateExist:
		if !ok {
			return fmt.Errorf("update %s: %w", key, ebpf.ErrKeyNotExist)
		}
	default:
		return fmt.Errorf("update %s: invalid flags %d: %w", key, flags, unix.EINVAL)
	}

	if !ok {
		if len(v.m.entries) >= v.m.maxEntries {
			return fmt.Errorf("update %s: map full (%d entries): %w", key, v.m.maxEntries, unix.E2BIG)
		}
		replicas = make([]types.Counters, v.m.numCPU)
		v.m.entries[key] = replicas
	}
	replicas[v.cpu] = *value
	return nil
}
