// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package bpf

import (
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
)

func TestCountersMapSpec(t *testing.T) {
	spec := CountersMapSpec(0)
	assert.Equal(t, ebpf.PerCPUHash, spec.Type)
	assert.Equal(t, uint32(8), spec.KeySize)
	assert.Equal(t, uint32(112), spec.ValueSize)
	assert.Equal(t, uint32(DefaultCountersMaxEntries), spec.MaxEntries)
	assert.Equal(t, ebpf.PinByName, spec.Pinning)

	assert.Equal(t, uint32(64), CountersMapSpec(64).MaxEntries)
}
