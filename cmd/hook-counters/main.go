// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 Hook Counters Contributors

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hook-counters-ebpf/bpf"
	"github.com/hook-counters-ebpf/internal/collector"
	"github.com/hook-counters-ebpf/internal/countermap"
	"github.com/hook-counters-ebpf/internal/log"
)

var (
	mapPinDir     = flag.String("map-pin-dir", "/sys/fs/bpf/tc/globals", "bpffs directory the counters map is pinned in")
	mapMaxEntries = flag.Int("map-max-entries", bpf.DefaultCountersMaxEntries, "Counters map max entries (interface/hook pairs)")
	pollInterval  = flag.Duration("poll-interval", 10*time.Second, "Interval to read the counters map and update metrics")
	logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat     = flag.String("log-format", "text", "Log format: text, json")
	listenAddress = flag.String("listen-address", "0.0.0.0:9101", "HTTP server listen address for /metrics")
	metricsPath   = flag.String("metrics-path", "/metrics", "HTTP path for Prometheus metrics")
	pruneRemoved  = flag.Bool("prune-removed", false, "Delete counters of interfaces that no longer exist")
	dump          = flag.Bool("dump", false, "Print the counters once and exit")
	dumpAll       = flag.Bool("dump-all", false, "With -dump, also print counters that are zero")
	flush         = flag.String("flush", "", "Delete the counters of the named interface and exit")
)

func main() {
	flag.Parse()

	if err := log.Configure(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		os.Exit(1)
	}
	slog.Debug("logging configured", "level", *logLevel, "format", *logFormat)

	var err error
	switch {
	case *dump:
		err = runDump()
	case *flush != "":
		err = runFlush(*flush)
	default:
		err = runExporter()
	}
	if err != nil {
		slog.Error("hook-counters failed", "err", err)
		os.Exit(1)
	}
}

func runExporter() error {
	slog.Info("starting hook-counters exporter",
		"map_pin_dir", *mapPinDir,
		"listen", *listenAddress,
		"poll_interval", *pollInterval,
	)
	slog.Debug("config",
		"map_max_entries", *mapMaxEntries,
		"metrics_path", *metricsPath,
		"prune_removed", *pruneRemoved,
	)

	cfg := collector.Config{
		MapPinDir:     *mapPinDir,
		MapMaxEntries: *mapMaxEntries,
		PollInterval:  *pollInterval,
		ListenAddress: *listenAddress,
		MetricsPath:   *metricsPath,
		PruneRemoved:  *pruneRemoved,
	}

	// Run collector (blocks until context is canceled)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := collector.Run(ctx, cfg); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func openPinned() (*countermap.Map, error) {
	return countermap.LoadPinned(filepath.Join(*mapPinDir, bpf.CountersMapName))
}

func runDump() error {
	m, err := openPinned()
	if err != nil {
		return err
	}
	defer m.Close()

	entries, err := m.Entries()
	if err != nil {
		return fmt.Errorf("read counters: %w", err)
	}
	return collector.Dump(os.Stdout, entries, collector.IfName, *dumpAll)
}

func runFlush(name string) error {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return fmt.Errorf("interface %q: %w", name, err)
	}
	m, err := openPinned()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Flush(uint32(iface.Index)); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	slog.Info("counters flushed", "iface", name, "index", iface.Index)
	return nil
}
