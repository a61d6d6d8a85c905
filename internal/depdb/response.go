package depdb

import "context"

// Response is the result of a Request call: exactly one of Execute,
// Block, or Ready. Execute takes precedence over Block, which takes
// precedence over Ready.
type Response interface {
	isResponse()
}

// Execute lists the keys the caller must run (in any order, possibly
// concurrently), calling Finished for each before calling Request again.
type Execute struct {
	Keys []any
}

// Block means at least one dependency of a requested key is already
// being built by another caller. Wait blocks until at least one of the
// live barriers backing that build releases; the caller must then call
// Request again. Wait never blocks while any status-map mutex is held.
type Block struct {
	Wait func(ctx context.Context) error
}

// Ready carries one value per requested key, in the same order as the
// Request call. Build is complete for every one of them.
type Ready struct {
	Values []any
}

func (Execute) isResponse() {}
func (Block) isResponse()   {}
func (Ready) isResponse()   {}
