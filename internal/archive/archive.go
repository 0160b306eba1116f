// Package archive stores raw fetched pages so extraction bugs can be
// replayed without refetching. Implementations return a URI for the stored
// object.
package archive

import "context"

// Noop discards pages. Used when archiving is disabled.
type Noop struct{}

// PutObject does nothing and returns an empty URI.
func (Noop) PutObject(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
