package middleware

import "github.com/aretw0/stepgraph/pkg/ports"

// Middleware allows wrapping a ReportStore to add behavior.
type Middleware func(ports.ReportStore) ports.ReportStore

// Wrap applies mws around store. The first middleware is the outermost:
// it sees a report first on Save and last on Load.
func Wrap(store ports.ReportStore, mws ...Middleware) ports.ReportStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
