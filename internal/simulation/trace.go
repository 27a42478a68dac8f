package simulation

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// Record types.
const (
	RecordSample = "sample"
	RecordEvent  = "event"
)

// lz4Suffix selects compressed trace output.
const lz4Suffix = ".lz4"

// Record is one line of a decision trace: either a heap sample taken after
// a unit of work or a controller event.
type Record struct {
	Scenario string  `json:"scenario"`
	Type     string  `json:"type"`
	AtMs     float64 `json:"at_ms"`
	Phase    string  `json:"phase,omitempty"`

	Allocated uint64 `json:"allocated,omitempty"`
	RSS       uint64 `json:"rss,omitempty"`
	Plateau   uint32 `json:"plateau,omitempty"`
	Busy      bool   `json:"busy,omitempty"`

	Kind       string  `json:"kind,omitempty"`
	Action     string  `json:"action,omitempty"`
	DelayMs    float64 `json:"delay_ms,omitempty"`
	DeferCount uint32  `json:"defer_count,omitempty"`
	Aggressive bool    `json:"aggressive,omitempty"`
	Pressure   bool    `json:"pressure,omitempty"`
	Forced     bool    `json:"forced,omitempty"`
	SweepMs    float64 `json:"sweep_ms,omitempty"`
}

// Trace is the outcome of one scenario run.
type Trace struct {
	Scenario       string
	Records        []Record
	Metrics        pacer.Metrics
	Elapsed        time.Duration
	PeakAllocated  uint64
	PeakRSS        uint64
	FinalAllocated uint64
	FinalPlateau   uint32
	Evictions      int
	Releases       int
	SafetyTimerOn  bool
}

// Samples returns the sample records in time order.
func (tr *Trace) Samples() []Record {
	return tr.filter(RecordSample)
}

// Events returns the event records in time order.
func (tr *Trace) Events() []Record {
	return tr.filter(RecordEvent)
}

// Count returns how many events of kind carry action.
func (tr *Trace) Count(kind pacer.Kind, action pacer.Action) int {
	n := 0

	for _, rec := range tr.Records {
		if rec.Type == RecordEvent && rec.Kind == kind.String() && rec.Action == string(action) {
			n++
		}
	}

	return n
}

func (tr *Trace) filter(typ string) []Record {
	out := make([]Record, 0, len(tr.Records))

	for _, rec := range tr.Records {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}

	return out
}

// WriteJSONL writes the records of every trace, one JSON object per line.
func WriteJSONL(w io.Writer, traces ...*Trace) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for _, tr := range traces {
		for i := range tr.Records {
			if err := enc.Encode(&tr.Records[i]); err != nil {
				return fmt.Errorf("encode trace record: %w", err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}

	return nil
}

// ReadJSONL reads records written by WriteJSONL.
func ReadJSONL(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)

	var records []Record

	for {
		var rec Record

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("decode trace record: %w", err)
		}

		records = append(records, rec)
	}
}

// WriteTraceFile writes traces to path as JSONL, LZ4-framed when the path
// ends in ".lz4".
func WriteTraceFile(path string, traces ...*Trace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if !strings.HasSuffix(path, lz4Suffix) {
		return WriteJSONL(f, traces...)
	}

	zw := lz4.NewWriter(f)

	if err := WriteJSONL(zw, traces...); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close lz4 stream: %w", err)
	}

	return nil
}

// ReadTraceFile reads a trace file written by WriteTraceFile.
func ReadTraceFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, lz4Suffix) {
		return ReadJSONL(lz4.NewReader(f))
	}

	return ReadJSONL(f)
}
