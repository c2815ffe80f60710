package interfaces

import "context"

// Watcher consumes the post stream until the extraction->matching pipeline
// produces a ticker, the stream is shut down, or the watcher is inert.
// ok is false when the watcher returned without a match.
type Watcher interface {
	Watch(ctx context.Context) (ticker string, ok bool, err error)
}
