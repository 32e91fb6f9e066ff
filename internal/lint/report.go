// SPDX-License-Identifier: MIT

package lint

import (
	"sort"
	"time"
)

// Severity classifies a finding. Errors fail the corpus check; warnings
// do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one lint result tied to a page and source line.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Page     string   `json:"page"` // source path relative to the content root
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

// Report aggregates all findings for one build.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Pages       int            `json:"pages"`
	Errors      int            `json:"errors"`
	Warnings    int            `json:"warnings"`
	ByRule      map[string]int `json:"by_rule,omitempty"`
	Findings    []Finding      `json:"findings,omitempty"`
}

// OK reports whether the corpus passed, meaning zero error-severity
// findings. Warnings alone do not fail a build.
func (r *Report) OK() bool {
	return r.Errors == 0
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// finish sorts findings by (page, line, rule) and recomputes the counters.
func (r *Report) finish() {
	sort.Slice(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})

	r.Errors = 0
	r.Warnings = 0
	r.ByRule = make(map[string]int)
	for _, f := range r.Findings {
		r.ByRule[f.Rule]++
		switch f.Severity {
		case SeverityError:
			r.Errors++
		case SeverityWarning:
			r.Warnings++
		}
	}
}
