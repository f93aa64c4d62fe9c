package harness

import (
	"time"

	"github.com/roach88/aplan/internal/compare"
	"github.com/roach88/aplan/internal/manifest"
	"github.com/roach88/aplan/internal/translate"
)

// Status is the outcome of one example.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"  // generated tree differs from the reference
	StatusError Status = "ERROR" // translation or filesystem failure
)

// Kind distinguishes test batches from regeneration batches.
type Kind string

const (
	KindTest       Kind = "test"
	KindRegenerate Kind = "regenerate"
)

// ExampleReport is the outcome of one manifest entry.
// It is built once when the example finishes and never modified afterwards.
type ExampleReport struct {
	Index     int               `json:"index"`
	Example   manifest.Example  `json:"example"`
	Status    Status            `json:"status"`
	Missing   []string          `json:"missing"`
	Extra     []string          `json:"extra"`
	Differing []string          `json:"differing"`
	Diffs     map[string]string `json:"diffs,omitempty"`
	Detail    string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration_ns"`

	// Err is the underlying failure for ERROR entries.
	Err error `json:"-"`
}

func newExampleReport(index int, ex manifest.Example) ExampleReport {
	return ExampleReport{
		Index:     index,
		Example:   ex,
		Missing:   []string{},
		Extra:     []string{},
		Differing: []string{},
	}
}

func (r ExampleReport) withError(err error) ExampleReport {
	r.Status = StatusError
	r.Err = err
	r.Detail = err.Error()
	return r
}

func (r ExampleReport) withComparison(res compare.Result, diffs map[string]string) ExampleReport {
	r.Missing = res.Missing
	r.Extra = res.Extra
	r.Differing = res.Differing
	r.Diffs = diffs
	if res.Empty() {
		r.Status = StatusPass
	} else {
		r.Status = StatusFail
	}
	return r
}

// Passed reports whether the example passed.
func (r ExampleReport) Passed() bool {
	return r.Status == StatusPass
}

// BatchReport aggregates one run over a manifest.
type BatchReport struct {
	RunID     string            `json:"run_id"`
	Kind      Kind              `json:"kind"`
	Variant   translate.Variant `json:"variant"`
	Manifest  string            `json:"manifest"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`
	Examples  []ExampleReport   `json:"examples"`
}

// Passed is true when every example passed. An empty batch passes.
func (b *BatchReport) Passed() bool {
	for _, ex := range b.Examples {
		if !ex.Passed() {
			return false
		}
	}
	return true
}

// Counts tallies examples by status.
type Counts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Total   int `json:"total"`
}

// Counts returns the per-status tally.
func (b *BatchReport) Counts() Counts {
	c := Counts{Total: len(b.Examples)}
	for _, ex := range b.Examples {
		switch ex.Status {
		case StatusPass:
			c.Passed++
		case StatusFail:
			c.Failed++
		default:
			c.Errored++
		}
	}
	return c
}

// Failed returns the examples that did not pass, in manifest order.
func (b *BatchReport) Failed() []ExampleReport {
	var out []ExampleReport
	for _, ex := range b.Examples {
		if !ex.Passed() {
			out = append(out, ex)
		}
	}
	return out
}
