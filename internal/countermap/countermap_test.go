// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package countermap

import (
	"testing"

	"github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
)

func TestCheckLayout(t *testing.T) {
	assert.NoError(t, checkLayout(ebpf.PerCPUHash, 8, 112))
	assert.ErrorContains(t, checkLayout(ebpf.Hash, 8, 112), "unexpected map type")
	assert.ErrorContains(t, checkLayout(ebpf.PerCPUHash, 4, 112), "unexpected key size")
	assert.ErrorContains(t, checkLayout(ebpf.PerCPUHash, 8, 8), "unexpected value size")
}
