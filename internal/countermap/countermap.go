// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

// Package countermap reads and maintains the pinned per-CPU counters map
// from user space.
package countermap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cilium/ebpf"
	"github.com/hook-counters-ebpf/bpf"
	"github.com/hook-counters-ebpf/internal/types"
)

const defaultBatchSize = 256

// Map is a user-space handle on the counters map.
type Map struct {
	m         *ebpf.Map
	numCPU    int
	batchSize int
	noBatch   bool
}

// Open creates or reuses the counters map pinned under pinDir.
func Open(pinDir string, maxEntries uint32) (*Map, error) {
	m, err := bpf.LoadCountersMap(pinDir, maxEntries)
	if err != nil {
		return nil, err
	}
	return wrap(m)
}

// LoadPinned opens an existing counters map at path and checks that its
// layout matches.
func LoadPinned(path string) (*Map, error) {
	m, err := ebpf.LoadPinnedMap(path, nil)
	if err != nil {
		return nil, fmt.Errorf("load pinned map %s: %w", path, err)
	}
	if err := checkLayout(m.Type(), m.KeySize(), m.ValueSize()); err != nil {
		m.Close()
		return nil, fmt.Errorf("pinned map %s: %w", path, err)
	}
	return wrap(m)
}

func wrap(m *ebpf.Map) (*Map, error) {
	numCPU, err := ebpf.PossibleCPU()
	if err != nil || numCPU <= 0 {
		m.Close()
		return nil, fmt.Errorf("per-CPU map access requires PossibleCPU: %w", err)
	}
	slog.Debug("counters map opened", "max_entries", m.MaxEntries(), "cpus", numCPU)
	return &Map{m: m, numCPU: numCPU, batchSize: defaultBatchSize}, nil
}

func checkLayout(typ ebpf.MapType, keySize, valueSize uint32) error {
	if typ != ebpf.PerCPUHash {
		return fmt.Errorf("unexpected map type %s, want %s", typ, ebpf.PerCPUHash)
	}
	if keySize != types.CounterKeySize {
		return fmt.Errorf("unexpected key size %d, want %d", keySize, types.CounterKeySize)
	}
	if valueSize != types.CounterValueSize {
		return fmt.Errorf("unexpected value size %d, want %d", valueSize, types.CounterValueSize)
	}
	return nil
}

func (m *Map) Close() error {
	return m.m.Close()
}

func (m *Map) MaxEntries() uint32 {
	return m.m.MaxEntries()
}

// Lookup returns every CPU's copy of key's counters.
func (m *Map) Lookup(key types.CounterKey) ([]types.Counters, error) {
	var values []types.Counters
	if err := m.m.Lookup(&key, &values); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	return values, nil
}

// Delete removes key. A missing key is not an error.
func (m *Map) Delete(key types.CounterKey) error {
	if err := m.m.Delete(&key); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Flush removes the counters of every hook of ifindex.
func (m *Map) Flush(ifindex uint32) error {
	var errs []error
	for _, hook := range types.Hooks {
		if err := m.Delete(types.CounterKey{Ifindex: ifindex, Hook: hook}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entries reads every entry with all its per-CPU values. Entries created
// or deleted while reading may or may not be included.
func (m *Map) Entries() ([]types.Entry, error) {
	if !m.noBatch {
		entries, err := m.batchEntries()
		if !errors.Is(err, ebpf.ErrNotSupported) {
			return entries, err
		}
		slog.Info("batch lookup not supported, falling back to iteration")
		m.noBatch = true
	}
	return m.iterEntries()
}

func (m *Map) batchEntries() ([]types.Entry, error) {
	keys := make([]types.CounterKey, m.batchSize)
	values := make([]types.Counters, m.batchSize*m.numCPU)
	var cursor ebpf.MapBatchCursor
	var out []types.Entry

	for {
		n, err := m.m.BatchLookup(&cursor, keys, values, nil)
		if err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			return nil, fmt.Errorf("batch lookup: %w", err)
		}
		for i := 0; i < n; i++ {
			out = append(out, types.Entry{
				Key:    keys[i],
				PerCPU: append([]types.Counters(nil), values[i*m.numCPU:(i+1)*m.numCPU]...),
			})
		}
		if n == 0 || errors.Is(err, ebpf.ErrKeyNotExist) {
			return out, nil
		}
	}
}

func (m *Map) iterEntries() ([]types.Entry, error) {
	var (
		out    []types.Entry
		key    types.CounterKey
		values []types.Counters
	)
	iter := m.m.Iterate()
	for iter.Next(&key, &values) {
		out = append(out, types.Entry{
			Key:    key,
			PerCPU: append([]types.Counters(nil), values...),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
