package report

import (
	"fmt"
	"time"
)

// Summary is derived from the recorded outcomes.
// Skipped+Uploaded+Failed equals the number of outcomes and TotalUploadedBytes
// is the sum over Uploaded outcomes only.
type Summary struct {
	Skipped            int   `json:"skipped"`
	Uploaded           int   `json:"uploaded"`
	Failed             int   `json:"failed"`
	TotalUploadedBytes int64 `json:"total_uploaded_bytes"`
}

// Aggregator accumulates outcomes in processing order. It is not safe for
// concurrent use; the orchestrator is its only writer.
type Aggregator struct {
	outcomes []Outcome
	summary  Summary
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Record(o Outcome) {
	a.outcomes = append(a.outcomes, o)
	a.add(o, 1)
}

// Reclassify turns the Uploaded outcome at index i into a VerificationFailed one,
// backing its bytes out of the totals
func (a *Aggregator) Reclassify(i int, err error) error {
	if i < 0 || i >= len(a.outcomes) {
		return fmt.Errorf("outcome index %d out of range", i)
	}
	o := a.outcomes[i]
	if o.Kind != KindUploaded {
		return fmt.Errorf("outcome %s is %s, not %s", o.Path, o.Kind, KindUploaded)
	}

	a.add(o, -1)
	failed := VerificationFailed(o.Source, o.Path, err)
	failed.Reason = o.Reason
	a.outcomes[i] = failed
	a.add(failed, 1)
	return nil
}

func (a *Aggregator) add(o Outcome, sign int) {
	switch o.Kind {
	case KindSkipped:
		a.summary.Skipped += sign
	case KindUploaded:
		a.summary.Uploaded += sign
		a.summary.TotalUploadedBytes += int64(sign) * o.Bytes
	case KindUploadFailed, KindVerificationFailed:
		a.summary.Failed += sign
	}
}

func (a *Aggregator) Summarize() Summary {
	return a.summary
}

// Outcomes returns a copy of the recorded outcomes
func (a *Aggregator) Outcomes() []Outcome {
	return append([]Outcome(nil), a.outcomes...)
}

func (a *Aggregator) Len() int {
	return len(a.outcomes)
}

// Result is the immutable artifact of a finished run
type Result struct {
	Source      string
	Destination string
	Outcomes    []Outcome
	Summary     Summary
	StartedAt   time.Time
	Duration    time.Duration
}

// Finish freezes the aggregator state into a Result
func (a *Aggregator) Finish(source, destination string, startedAt time.Time, duration time.Duration) *Result {
	return &Result{
		Source:      source,
		Destination: destination,
		Outcomes:    a.Outcomes(),
		Summary:     a.Summarize(),
		StartedAt:   startedAt,
		Duration:    duration,
	}
}

func (r *Result) filter(keep func(Outcome) bool) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (r *Result) Skipped() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Kind == KindSkipped })
}

func (r *Result) Uploaded() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Kind == KindUploaded })
}

func (r *Result) Failed() []Outcome {
	return r.filter(Outcome.Failed)
}
