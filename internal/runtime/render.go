package runtime

import (
	"github.com/aretw0/stepgraph/pkg/domain"
)

// render returns the request with result placeholders substituted.
// Only results of nodes that reached a terminal state are visible; anything
// else leaves the placeholder verbatim. The graph's request is never modified.
func (x *execution) render(req domain.Request) domain.Request {
	if len(x.referenced(req)) == 0 {
		return req
	}
	return domain.RewriteRequest(req, func(s string) string {
		return domain.Substitute(s, x.lookup)
	})
}

func (x *execution) referenced(req domain.Request) []string {
	var refs []string
	for _, s := range domain.RequestStrings(req) {
		refs = append(refs, domain.PlaceholderRefs(s)...)
	}
	return refs
}

// lookup resolves {{step_<ref>.result.<field>}} against the result store.
func (x *execution) lookup(ref, field string) (string, bool) {
	id, ok := x.aliases[ref]
	if !ok {
		id, ok = x.aliases["step_"+ref]
	}
	if !ok {
		return "", false
	}
	rec, ok := x.store.Load(id)
	if !ok || !rec.state.IsTerminal() || rec.result == nil {
		return "", false
	}
	return rec.result.Field(field)
}
