// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hook-counters-ebpf/internal/countermap"
	"github.com/hook-counters-ebpf/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"
)

// Config is read-only after Run() is called and safe for concurrent reads.
type Config struct {
	MapPinDir     string
	MapMaxEntries int
	PollInterval  time.Duration
	ListenAddress string
	MetricsPath   string
	PruneRemoved  bool // delete entries of interfaces that no longer exist
}

// Source yields a per-CPU snapshot of the counters map.
type Source interface {
	Entries() ([]types.Entry, error)
}

// Deleter is implemented by sources that support removing entries.
type Deleter interface {
	Delete(key types.CounterKey) error
}

// Options tune a Collector. The zero value is usable.
type Options struct {
	PruneRemoved bool
	// InterfaceByIndex resolves an ifindex to a name. It reports false if
	// the interface does not exist. Defaults to net.InterfaceByIndex.
	InterfaceByIndex func(ifindex int) (string, bool)
}

type Collector struct {
	src          Source
	metrics      *metrics
	pruneRemoved bool
	ifaceByIndex func(int) (string, bool)
	prev         map[types.CounterKey]prevEntry // last summed values, for counter deltas
	prevMu       sync.Mutex                     // protects prev
	ifNameMap    map[int]string                 // ifindex -> last known name
	ifNameMu     sync.Mutex                     // protects ifNameMap
}

type prevEntry struct {
	iface  string
	values types.Counters
}

// New creates a Collector reading src and registers its metrics with reg.
func New(src Source, reg prometheus.Registerer, opts Options) *Collector {
	c := &Collector{
		src:          src,
		metrics:      newMetrics(),
		pruneRemoved: opts.PruneRemoved,
		ifaceByIndex: opts.InterfaceByIndex,
		prev:         make(map[types.CounterKey]prevEntry),
		ifNameMap:    make(map[int]string),
	}
	if c.ifaceByIndex == nil {
		c.ifaceByIndex = systemInterfaceByIndex
	}
	c.metrics.register(reg)
	return c
}

func Run(ctx context.Context, cfg Config) error {
	if cfg.MapMaxEntries <= 0 {
		return fmt.Errorf("--map-max-entries must be > 0, got %d", cfg.MapMaxEntries)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("--poll-interval must be > 0, got %v", cfg.PollInterval)
	}

	if err := checkKernelVersion(); err != nil {
		slog.Error("kernel version check failed", "err", err)
		return err
	}

	m, err := countermap.Open(cfg.MapPinDir, uint32(cfg.MapMaxEntries))
	if err != nil {
		slog.Error("open counters map failed", "pin_dir", cfg.MapPinDir, "err", err)
		return fmt.Errorf("open counters map: %w", err)
	}
	defer m.Close()
	slog.Info("counters map opened", "pin_dir", cfg.MapPinDir, "max_entries", m.MaxEntries())

	c := New(m, prometheus.DefaultRegisterer, Options{PruneRemoved: cfg.PruneRemoved})
	c.metrics.configMapMaxEntries.Set(float64(m.MaxEntries()))
	c.metrics.configPollInterval.Set(cfg.PollInterval.Seconds())

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
	slog.Debug("HTTP server starting", "listen", cfg.ListenAddress, "metrics_path", cfg.MetricsPath)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelShutdown()
	defer srv.Shutdown(shutdownCtx)

	if err := c.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("poll", "err", err)
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	slog.Debug("poll loop started", "interval", cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("context canceled, exiting poll loop")
			return ctx.Err()
		case <-ticker.C:
			if err := c.Poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				slog.Error("poll", "err", err)
			}
		}
	}
}

// Poll reads the map once and turns the summed kernel values into
// Prometheus counter increments.
func (c *Collector) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		slog.Debug("poll exit", "reason", "context canceled")
		return err
	}

	start := time.Now()
	entries, err := c.src.Entries()
	if err != nil {
		c.metrics.mapReadErrorsTotal.Inc()
		return fmt.Errorf("read counters map: %w", err)
	}
	readDuration := time.Since(start).Seconds()
	c.metrics.mapReadDurationSeconds.Set(readDuration)
	slog.Debug("counters map read", "entries", len(entries), "duration_sec", readDuration)

	// Resolve each interface once per poll.
	type ifaceState struct {
		name   string
		exists bool
	}
	ifaces := make(map[uint32]ifaceState)
	for _, e := range entries {
		if _, ok := ifaces[e.Key.Ifindex]; !ok {
			name, exists := c.resolveIfName(int(e.Key.Ifindex))
			ifaces[e.Key.Ifindex] = ifaceState{name: name, exists: exists}
		}
	}

	c.prevMu.Lock()
	defer c.prevMu.Unlock()

	seen := make(map[types.CounterKey]struct{}, len(entries))
	liveIfaces := make(map[uint32]struct{}, len(ifaces))
	for _, e := range entries {
		iface := ifaces[e.Key.Ifindex]
		if !iface.exists && c.pruneRemoved && c.prune(e.Key, iface.name) {
			continue
		}
		seen[e.Key] = struct{}{}
		liveIfaces[e.Key.Ifindex] = struct{}{}

		cur := types.Sum(e.PerCPU)
		prev, had := c.prev[e.Key]
		hook := e.Key.Hook.String()
		ifindex := strconv.FormatUint(uint64(e.Key.Ifindex), 10)
		if had && prev.iface != iface.name {
			// Renamed: the new series starts from the full value.
			c.metrics.counters.DeletePartialMatch(seriesLabels(prev.iface, e.Key))
			had = false
		}
		for slot := range cur {
			delta := cur[slot]
			// A value below the previous one means the entry was recreated.
			if had && cur[slot] >= prev.values[slot] {
				delta = cur[slot] - prev.values[slot]
			}
			c.metrics.counters.WithLabelValues(iface.name, ifindex, hook, types.Counter(slot).String()).Add(float64(delta))
		}
		c.prev[e.Key] = prevEntry{iface: iface.name, values: cur}
	}

	for k, prev := range c.prev {
		if _, ok := seen[k]; ok {
			continue
		}
		delete(c.prev, k)
		n := c.metrics.counters.DeletePartialMatch(seriesLabels(prev.iface, k))
		slog.Debug("counters entry gone", "key", k, "series_deleted", n)
	}

	c.forgetIfNames(liveIfaces)
	c.metrics.mapEntries.Set(float64(len(seen)))
	return nil
}

// seriesLabels selects every counter series of one map entry.
func seriesLabels(iface string, key types.CounterKey) prometheus.Labels {
	return prometheus.Labels{
		"interface": iface,
		"ifindex":   strconv.FormatUint(uint64(key.Ifindex), 10),
		"hook":      key.Hook.String(),
	}
}

// prune deletes key from the source. It reports whether the entry is gone.
func (c *Collector) prune(key types.CounterKey, name string) bool {
	d, ok := c.src.(Deleter)
	if !ok {
		return false
	}
	if err := d.Delete(key); err != nil {
		slog.Warn("delete counters of removed interface failed", "iface", name, "key", key, "err", err)
		return false
	}
	c.metrics.prunedEntriesTotal.Inc()
	slog.Info("deleted counters of removed interface", "iface", name, "index", key.Ifindex, "hook", key.Hook)
	return true
}

// resolveIfName returns the interface name for ifindex and whether the
// interface currently exists. Removed interfaces keep their last known
// name so their series can be cleaned up.
func (c *Collector) resolveIfName(ifindex int) (string, bool) {
	c.ifNameMu.Lock()
	defer c.ifNameMu.Unlock()
	if name, ok := c.ifaceByIndex(ifindex); ok {
		c.ifNameMap[ifindex] = name
		return name, true
	}
	if name, ok := c.ifNameMap[ifindex]; ok {
		return name, false
	}
	return strconv.Itoa(ifindex), false
}

// forgetIfNames drops cached names of interfaces without map entries.
func (c *Collector) forgetIfNames(keep map[uint32]struct{}) {
	c.ifNameMu.Lock()
	defer c.ifNameMu.Unlock()
	for ifindex := range c.ifNameMap {
		if _, ok := keep[uint32(ifindex)]; !ok {
			delete(c.ifNameMap, ifindex)
		}
	}
}

func systemInterfaceByIndex(ifindex int) (string, bool) {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return "", false
	}
	return stableInterfaceName(*iface), true
}

func stableInterfaceName(iface net.Interface) string {
	if iface.Name != "" {
		return iface.Name
	}
	return fmt.Sprintf("%d", iface.Index)
}

// checkKernelVersion verifies kernel is 4.6+ (required for per-CPU hash maps).
func checkKernelVersion() error {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return fmt.Errorf("failed to get kernel version: %w", err)
	}
	release := string(uname.Release[:bytes.IndexByte(uname.Release[:], 0)])

	major, minor, err := parseKernelRelease(release)
	if err != nil {
		return err
	}
	if major < 4 || (major == 4 && minor < 6) {
		return fmt.Errorf("kernel %d.%d (from %q): per-CPU hash maps require kernel 4.6 or newer", major, minor, release)
	}

	slog.Info("kernel version check passed", "version", release, "major", major, "minor", minor)
	return nil
}

func parseKernelRelease(release string) (major, minor int, err error) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("kernel version %q: invalid format (expected X.Y.Z)", release)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("kernel version %q: invalid major version", release)
	}

	minorStr := parts[1]
	// Strip anything after first non-digit (e.g., "12+deb13" -> "12")
	for i, c := range minorStr {
		if c < '0' || c > '9' {
			minorStr = minorStr[:i]
			break
		}
	}
	minor, err = strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, fmt.Errorf("kernel version %q: invalid minor version", release)
	}
	return major, minor, nil
}
