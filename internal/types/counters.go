// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package types

import "fmt"

// MaxCounters is the fixed length of every counter array.
const MaxCounters = 14

// Counter is a slot index into Counters.
type Counter uint8

const (
	TotalPackets Counter = iota
	AcceptedByFailsafe
	AcceptedByPolicy
	AcceptedByAnotherProgram
	DroppedByPolicy
	DroppedShortPacket
	DroppedFailedCSUM
	DroppedIPOptions
	DroppedIPMalformed
	DroppedFailedEncap
	DroppedFailedDecap
	DroppedUnauthSource
	DroppedUnknownRoute
	DroppedBlackholeRoute
)

var counterNames = [MaxCounters]struct {
	label string
	desc  string
}{
	TotalPackets:             {"total_packets", "Total packets"},
	AcceptedByFailsafe:       {"accepted_by_failsafe", "Accepted by failsafe"},
	AcceptedByPolicy:         {"accepted_by_policy", "Accepted by policy"},
	AcceptedByAnotherProgram: {"accepted_by_another_program", "Accepted by another program"},
	DroppedByPolicy:          {"dropped_by_policy", "Dropped by policy"},
	DroppedShortPacket:       {"dropped_short_packet", "Dropped too short packets"},
	DroppedFailedCSUM:        {"dropped_failed_csum", "Dropped incorrect checksum"},
	DroppedIPOptions:         {"dropped_ip_options", "Dropped packets with unsupported IP options"},
	DroppedIPMalformed:       {"dropped_ip_malformed", "Dropped malformed IP packets"},
	DroppedFailedEncap:       {"dropped_failed_encap", "Dropped failed encapsulation"},
	DroppedFailedDecap:       {"dropped_failed_decap", "Dropped failed decapsulation"},
	DroppedUnauthSource:      {"dropped_unauth_source", "Dropped packets with unknown source"},
	DroppedUnknownRoute:      {"dropped_unknown_route", "Dropped packets with unknown route"},
	DroppedBlackholeRoute:    {"dropped_blackhole_route", "Dropped packets due to blackhole route"},
}

// String returns the metric label of the slot.
func (c Counter) String() string {
	if int(c) < MaxCounters {
		return counterNames[c].label
	}
	return fmt.Sprintf("counter(%d)", uint8(c))
}

func (c Counter) Description() string {
	if int(c) < MaxCounters {
		return counterNames[c].desc
	}
	return c.String()
}

// Counters matches counters_t: __u64[MaxCounters]. One value exists per
// CPU in the map.
type Counters [MaxCounters]uint64

// Inc bumps a single slot. It is not atomic; each CPU owns its copy.
func (c *Counters) Inc(slot Counter) {
	c[slot]++
}

// IsZero reports whether every slot is zero.
func (c Counters) IsZero() bool {
	return c == Counters{}
}

// Entry is a snapshot of one key with the value of every CPU.
type Entry struct {
	Key    CounterKey
	PerCPU []Counters
}

// Sum adds up the per-CPU copies of a counter array.
func Sum(perCPU []Counters) Counters {
	var total Counters
	for i := range perCPU {
		for j := range total {
			total[j] += perCPU[i][j]
		}
	}
	return total
}
