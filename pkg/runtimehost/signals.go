// Package runtimehost adapts the pacing controller to the running Go
// process: telemetry comes from runtime/metrics and procfs, collections are
// runtime.GC calls, and memory is returned with debug.FreeOSMemory.
package runtimehost

import (
	"runtime/metrics"
	"sync/atomic"

	"github.com/prometheus/procfs"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/safeconv"
	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

const (
	metricHeapObjects = "/memory/classes/heap/objects:bytes"
	metricGCCycles    = "/gc/cycles/total:gc-cycle"
)

// WorkQueue reports whether the host's event loop has queued work.
type WorkQueue interface {
	HasPending() bool
}

// SignalsConfig holds parameters for [NewSignals].
type SignalsConfig struct {
	// Busy tracks latency-sensitive work in flight; nil means never busy.
	Busy *BusyTracker
	// Queue reports event-loop backlog; nil means never backlogged.
	Queue WorkQueue
	// RAMOverride replaces the detected physical memory size when non-zero.
	RAMOverride uint64
	// ProcFS is the procfs mount point; empty selects the default.
	ProcFS string
}

// Signals implements [pacer.HostSignals] for the current process.
type Signals struct {
	busy  *BusyTracker
	queue WorkQueue
	ram   uint64
	fs    *procfs.FS

	allocated atomic.Uint64
}

var _ pacer.HostSignals = (*Signals)(nil)

// NewSignals detects physical memory once and returns the adapter. When
// procfs is unavailable RAM is reported as zero and RSS as absent.
func NewSignals(cfg SignalsConfig) *Signals {
	sig := &Signals{
		busy:  cfg.Busy,
		queue: cfg.Queue,
		ram:   cfg.RAMOverride,
	}

	fs, err := openProcFS(cfg.ProcFS)
	if err == nil {
		sig.fs = &fs
	}

	if sig.ram == 0 && sig.fs != nil {
		sig.ram = readMemTotal(*sig.fs)
	}

	return sig
}

func openProcFS(mount string) (procfs.FS, error) {
	if mount == "" {
		return procfs.NewDefaultFS()
	}

	return procfs.NewFS(mount)
}

func readMemTotal(fs procfs.FS) uint64 {
	info, err := fs.Meminfo()
	if err != nil || info.MemTotal == nil {
		return 0
	}

	return *info.MemTotal * units.KiB
}

// BlockBytesAllocated samples the bytes held by live and unswept heap objects.
func (s *Signals) BlockBytesAllocated() uint64 {
	v := readUint64Metric(metricHeapObjects)
	s.allocated.Store(v)

	return v
}

// Allocated returns the most recent allocation sample without reading the
// runtime. Safe for concurrent use.
func (s *Signals) Allocated() uint64 {
	return s.allocated.Load()
}

// RAMSize returns the detected physical memory.
func (s *Signals) RAMSize() uint64 {
	return s.ram
}

// ResidentSetSize reads the process RSS from procfs.
func (s *Signals) ResidentSetSize() (uint64, bool) {
	if s.fs == nil {
		return 0, false
	}

	proc, err := s.fs.Self()
	if err != nil {
		return 0, false
	}

	stat, err := proc.Stat()
	if err != nil {
		return 0, false
	}

	return safeconv.IntToUint64(stat.ResidentMemory()), true
}

// HasMoreEventLoopWork reports whether the event loop has queued tasks.
func (s *Signals) HasMoreEventLoopWork() bool {
	return s.queue != nil && s.queue.HasPending()
}

// IsBusyDoingImportantWork reports whether tracked work is in flight.
func (s *Signals) IsBusyDoingImportantWork() bool {
	return s.busy != nil && s.busy.Busy()
}

func readUint64Metric(name string) uint64 {
	sample := []metrics.Sample{{Name: name}}
	metrics.Read(sample)

	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}

	return sample[0].Value.Uint64()
}
