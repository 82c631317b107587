// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

// Package counters resolves the per-interface, per-hook counter array a
// dataplane program increments. Nothing here blocks, allocates on the hit
// path or logs: failures come back as a nil handle.
package counters

import (
	"github.com/cilium/ebpf"
	"github.com/hook-counters-ebpf/internal/types"
)

// Store is the counters map as seen from the CPU running the program.
// Lookup returns nil when the key has no entry. The map never creates
// entries on its own.
type Store interface {
	Lookup(key types.CounterKey) *types.Counters
	Update(key types.CounterKey, value *types.Counters, flags ebpf.MapUpdateFlags) error
}

// KeyFor derives the map key for ifindex from the flags of the running
// program. When no flag is set the hook keeps its zero value.
func KeyFor(ifindex uint32, flags types.HookFlags) types.CounterKey {
	key := types.CounterKey{Ifindex: ifindex}

	switch {
	case flags&types.FlagXDP != 0:
		key.Hook = types.HookXDP
	case flags&types.FlagToHEP != 0:
		key.Hook = types.HookEgress
	case flags&types.FlagFromHEP != 0:
		key.Hook = types.HookIngress
	case flags&types.FlagToWEP != 0:
		key.Hook = types.HookEgress
	case flags&types.FlagFromWEP != 0:
		key.Hook = types.HookIngress
	}

	return key
}

// Get returns the current CPU's counters for ifindex and the running
// hook, creating a zeroed entry on first use. It returns nil if the entry
// cannot be created, typically because the map is full.
func Get(s Store, ifindex uint32, flags types.HookFlags) *types.Counters {
	key := KeyFor(ifindex, flags)

	if c := s.Lookup(key); c != nil {
		return c
	}

	// Update does not hand back the stored value, so look it up again.
	var zero types.Counters
	if err := s.Update(key, &zero, ebpf.UpdateAny); err != nil {
		return nil
	}

	return s.Lookup(key)
}

// Ctx is the per-invocation state a hook program carries around.
// Counters is only valid until the invocation returns.
type Ctx struct {
	Ifindex  uint32
	Flags    types.HookFlags
	Counters *types.Counters
}

// Resolve fetches the counters for this invocation. It reports false when
// no counters are available, in which case Inc is a no-op.
func (ctx *Ctx) Resolve(s Store) bool {
	ctx.Counters = Get(s, ctx.Ifindex, ctx.Flags)
	return ctx.Counters != nil
}

// Inc bumps slot if the counters were resolved. Counters are best effort
// and a missing array never affects packet handling.
func (ctx *Ctx) Inc(slot types.Counter) {
	if ctx.Counters != nil {
		ctx.Counters.Inc(slot)
	}
}
