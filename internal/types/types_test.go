// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package types

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	assert.Equal(t, CounterKeySize, binary.Size(CounterKey{}))
	assert.Equal(t, CounterValueSize, binary.Size(Counters{}))
	assert.Equal(t, 112, CounterValueSize)
}

func TestHookValues(t *testing.T) {
	assert.Equal(t, uint32(0), uint32(HookIngress))
	assert.Equal(t, uint32(1), uint32(HookEgress))
	assert.Equal(t, uint32(2), uint32(HookXDP))
	assert.Equal(t, "xdp", HookXDP.String())
	assert.Equal(t, "hook(7)", Hook(7).String())
	assert.Equal(t, "3/egress", CounterKey{Ifindex: 3, Hook: HookEgress}.String())
}

func TestCounterNames(t *testing.T) {
	seen := make(map[string]struct{})
	for c := Counter(0); c < MaxCounters; c++ {
		name := c.String()
		assert.NotEmpty(t, name)
		assert.NotEmpty(t, c.Description())
		assert.NotContains(t, seen, name)
		seen[name] = struct{}{}
	}
	assert.Equal(t, "dropped_blackhole_route", DroppedBlackholeRoute.String())
	assert.Equal(t, "counter(14)", Counter(MaxCounters).String())
}

func TestIncAndSum(t *testing.T) {
	perCPU := make([]Counters, 3)
	perCPU[0].Inc(TotalPackets)
	perCPU[1].Inc(TotalPackets)
	perCPU[2].Inc(DroppedByPolicy)
	perCPU[2].Inc(DroppedByPolicy)

	sum := Sum(perCPU)
	assert.Equal(t, uint64(2), sum[TotalPackets])
	assert.Equal(t, uint64(2), sum[DroppedByPolicy])
	assert.False(t, sum.IsZero())
	assert.True(t, Sum(nil).IsZero())

	var zero Counters
	zero.Inc(TotalPackets)
	assert.False(t, zero.IsZero())
}

func TestIncOutOfRangePanics(t *testing.T) {
	var c Counters
	slot := Counter(MaxCounters)
	assert.Panics(t, func() { c.Inc(slot) })
}
