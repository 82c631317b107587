// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package counters

import (
	"testing"

	"github.com/cilium/ebpf"
	"github.com/hook-counters-ebpf/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewPerCPUMapValidation(t *testing.T) {
	_, err := NewPerCPUMap(0, 10)
	assert.Error(t, err)
	_, err = NewPerCPUMap(1, 0)
	assert.Error(t, err)
}

func TestPerCPUMapUpdateFlags(t *testing.T) {
	m, err := NewPerCPUMap(2, 1)
	require.NoError(t, err)
	cpu := m.CPU(0)
	key := types.CounterKey{Ifindex: 1, Hook: types.HookEgress}
	val := types.Counters{1, 2, 3}

	err = cpu.Update(key, &val, ebpf.UpdateExist)
	assert.ErrorIs(t, err, ebpf.ErrKeyNotExist)

	require.NoError(t, cpu.Update(key, &val, ebpf.UpdateNoExist))
	err = cpu.Update(key, &val, ebpf.UpdateNoExist)
	assert.ErrorIs(t, err, ebpf.ErrKeyExist)

	val[0] = 10
	require.NoError(t, cpu.Update(key, &val, ebpf.UpdateExist))
	assert.Equal(t, uint64(10), cpu.Lookup(key)[0])

	err = cpu.Update(types.CounterKey{Ifindex: 2}, &val, ebpf.UpdateAny)
	assert.ErrorIs(t, err, unix.E2BIG)

	err = cpu.Update(key, &val, ebpf.MapUpdateFlags(42))
	assert.ErrorIs(t, err, unix.EINVAL)
}

func TestPerCPUMapCreateZeroesOtherCPUs(t *testing.T) {
	m, err := NewPerCPUMap(3, 4)
	require.NoError(t, err)
	key := types.CounterKey{Ifindex: 4, Hook: types.HookXDP}
	val := types.Counters{5}

	require.NoError(t, m.CPU(1).Update(key, &val, ebpf.UpdateAny))

	assert.True(t, m.CPU(0).Lookup(key).IsZero())
	assert.Equal(t, val, *m.CPU(1).Lookup(key))
	assert.True(t, m.CPU(2).Lookup(key).IsZero())

	// Overwriting from another CPU leaves the first replica alone.
	var zero types.Counters
	require.NoError(t, m.CPU(2).Update(key, &zero, ebpf.UpdateAny))
	assert.Equal(t, val, *m.CPU(1).Lookup(key))
}

func TestPerCPUMapHandleIsStable(t *testing.T) {
	m, err := NewPerCPUMap(1, 100)
	require.NoError(t, err)
	cpu := m.CPU(0)

	h := Get(cpu, 1, types.FlagXDP)
	require.NotNil(t, h)
	for i := uint32(2); i < 50; i++ {
		require.NotNil(t, Get(cpu, i, types.FlagXDP))
	}
	h.Inc(types.TotalPackets)
	assert.Equal(t, uint64(1), Get(cpu, 1, types.FlagXDP)[types.TotalPackets])
}

func TestPerCPUMapDelete(t *testing.T) {
	m, err := NewPerCPUMap(1, 1)
	require.NoError(t, err)
	cpu := m.CPU(0)

	Get(cpu, 1, types.FlagXDP).Inc(types.TotalPackets)
	key := KeyFor(1, types.FlagXDP)

	require.NoError(t, m.Delete(key))
	assert.ErrorIs(t, m.Delete(key), ebpf.ErrKeyNotExist)
	assert.Nil(t, cpu.Lookup(key))

	// Freed capacity can be reused and the entry starts from zero.
	c := Get(cpu, 1, types.FlagXDP)
	require.NotNil(t, c)
	assert.True(t, c.IsZero())
}

func TestPerCPUMapEntriesIsACopy(t *testing.T) {
	m, err := NewPerCPUMap(1, 1)
	require.NoError(t, err)
	Get(m.CPU(0), 1, types.FlagXDP).Inc(types.TotalPackets)

	entries, err := m.Entries()
	require.NoError(t, err)
	entries[0].PerCPU[0][types.TotalPackets] = 100

	assert.Equal(t, uint64(1), Get(m.CPU(0), 1, types.FlagXDP)[types.TotalPackets])
}

func TestPerCPUMapCPUOutOfRange(t *testing.T) {
	m, err := NewPerCPUMap(2, 1)
	require.NoError(t, err)
	assert.Panics(t, func() { m.CPU(2) })
	assert.Panics(t, func() { m.CPU(-1) })
}
