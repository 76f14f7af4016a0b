package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.ReportStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks every match of the
// patterns in captured output and messages, plus metadata values whose key matches.
// It panics if a pattern does not compile.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ReportStore) ports.ReportStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, report *domain.Report) error {
	// The engine keeps using its own copy.
	cloned := *report
	cloned.Nodes = make([]domain.NodeReport, len(report.Nodes))
	for i, n := range report.Nodes {
		n.Message = m.mask(n.Message)
		if n.Result != nil {
			res := m.redactResult(*n.Result)
			n.Result = &res
		}
		cloned.Nodes[i] = n
	}
	cloned.BuildErrors = m.maskAll(report.BuildErrors)
	cloned.Warnings = m.maskAll(report.Warnings)
	if report.Fitting != nil {
		fit := *report.Fitting
		fit.PreparationResults = make([]domain.OperationResult, len(report.Fitting.PreparationResults))
		for i, r := range report.Fitting.PreparationResults {
			fit.PreparationResults[i] = m.redactResult(r)
		}
		cloned.Fitting = &fit
	}

	return m.next.Save(ctx, &cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, runID string) (*domain.Report, error) {
	return m.next.Load(ctx, runID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func (m *redactionMiddleware) redactResult(r domain.OperationResult) domain.OperationResult {
	r.Stdout = m.mask(r.Stdout)
	r.Stderr = m.mask(r.Stderr)
	r.Content = m.mask(r.Content)
	r.ErrorMessage = m.mask(r.ErrorMessage)
	r.Metadata = m.maskMetadata(r.Metadata)

	if r.SubResults != nil {
		subs := make([]domain.OperationResult, len(r.SubResults))
		for i, sub := range r.SubResults {
			subs[i] = m.redactResult(sub)
		}
		r.SubResults = subs
	}
	if r.CompositeFailure != nil {
		cf := *r.CompositeFailure
		cf.Cause = m.mask(cf.Cause)
		r.CompositeFailure = &cf
	}
	return r
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *redactionMiddleware) maskAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = m.mask(s)
	}
	return out
}

func (m *redactionMiddleware) maskMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
		if m.matches(k) {
			out[k] = Mask
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = m.mask(val)
		case map[string]any:
			out[k] = m.maskMetadata(val)
		}
	}
	return out
}

func (m *redactionMiddleware) matches(s string) bool {
	for _, p := range m.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
