package migration

import (
	"github.com/danielolaszy/bz2jira/internal/logging"
	"go.uber.org/multierr"
)

// PassResult counts what one pass did.
type PassResult struct {
	Name string

	// Processed is the number of records that produced a tracker call
	Processed int

	// Skipped is the number of records ignored (unmapped bug, empty text, ...)
	Skipped int

	// Failed is the number of records whose tracker call failed
	Failed int

	errs error
}

// Err returns every per-record error of the pass, combined.
func (r *PassResult) Err() error {
	return r.errs
}

func (r *PassResult) addError(err error) {
	r.Failed++
	r.errs = multierr.Append(r.errs, err)
}

// Report is the outcome of a migration run.
type Report struct {
	Passes []*PassResult

	// Issues is the number of issues created
	Issues int
}

// Pass returns the result of the named pass, or nil if it did not run.
func (r *Report) Pass(name string) *PassResult {
	for _, p := range r.Passes {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Failed returns the number of failed records across passes.
func (r *Report) Failed() int {
	total := 0
	for _, p := range r.Passes {
		total += p.Failed
	}
	return total
}

// Err combines the per-record errors of every pass.
func (r *Report) Err() error {
	var err error
	for _, p := range r.Passes {
		err = multierr.Append(err, p.errs)
	}
	return err
}

// Log writes one summary line per pass.
func (r *Report) Log() {
	for _, p := range r.Passes {
		args := []any{
			"pass", p.Name,
			"processed", p.Processed,
			"skipped", p.Skipped,
			"failed", p.Failed,
		}
		if p.Failed > 0 {
			logging.Warn("pass summary", args...)
		} else {
			logging.Info("pass summary", args...)
		}
	}
	logging.Info("migration summary", "issues_created", r.Issues, "failed_records", r.Failed())
}
