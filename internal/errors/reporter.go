package errors

// Reporter is the error-reporting capability shared by reference across the
// generators. It is append-only; the order of reports is the order of the
// call sites that produced them.
type Reporter struct {
	reports []*Report
	fatal   func(*Report)
}

// NewReporter returns a Reporter. The fatal callback is invoked for hard
// errors (must-bind failures, internal invariant violations); a nil callback
// panics, which matches the "never recovered" policy for invariants.
func NewReporter(fatal func(*Report)) *Reporter {
	if fatal == nil {
		fatal = func(r *Report) {
			panic("fatal: " + r.Code + ": " + r.Message)
		}
	}
	return &Reporter{fatal: fatal}
}

// Report appends a non-fatal report.
func (r *Reporter) Report(rep *Report) {
	if rep == nil {
		return
	}
	r.reports = append(r.reports, rep)
}

// ReportErr appends the structured report inside err, or a generic report
// when err carries none.
func (r *Reporter) ReportErr(phase string, err error) {
	if err == nil {
		return
	}
	if rep, ok := AsReport(err); ok {
		r.Report(rep)
		return
	}
	r.Report(NewGeneric(phase, err))
}

// Fatal hands a hard error to the fatal channel. It does not return control
// flow guarantees; callers must treat it as terminal for the item at hand.
func (r *Reporter) Fatal(rep *Report) {
	r.reports = append(r.reports, rep)
	r.fatal(rep)
}

// All returns the reports in append order.
func (r *Reporter) All() []*Report {
	return r.reports
}

// HasErrors reports whether anything was reported.
func (r *Reporter) HasErrors() bool {
	return len(r.reports) > 0
}
