// Package docstore defines the shared replicated document store the room
// and session layers coordinate through. The contract mirrors a hosted
// realtime database: full-document writes, per-call atomic field merges,
// live subscriptions, a single-field secondary query, and best-effort
// on-disconnect cleanup. Conflict policy is last-write-wins per path;
// there are no transactions across paths and no write ordering guarantee
// between two different documents.
package docstore

import (
	"context"
	"errors"
)

// ErrAbsent is returned by ReadOnce when no document exists at the path.
var ErrAbsent = errors.New("docstore: absent")

// Store is the abstract shared document store.
//
// A path is slash-separated; its first two segments name a stored
// document ("rooms/<id>"), deeper segments address values inside it
// ("rooms/<id>/game/progress"). Writes anywhere inside a document notify
// every subscriber of that document, each receiving the value at its own
// subscribed path.
type Store interface {
	// Write replaces the value at path, creating the document if needed.
	Write(ctx context.Context, path string, value any) error

	// Update merges the named fields into the object at path. The merge
	// is atomic per call at this path only.
	Update(ctx context.Context, path string, fields map[string]any) error

	// ReadOnce decodes the current value at path into dest, or returns
	// ErrAbsent.
	ReadOnce(ctx context.Context, path string, dest any) error

	// Subscribe delivers the current raw value at path immediately and
	// again after every change; nil means the path is absent. Snapshots
	// coalesce: a slow consumer sees the latest value, not every
	// intermediate one. The returned func cancels the subscription.
	Subscribe(path string, fn func(data []byte)) (cancel func())

	// QueryByField returns the raw documents in a collection whose
	// top-level field equals value.
	QueryByField(ctx context.Context, collection, field string, value any) ([][]byte, error)

	// Delete removes the value at path. Deleting an element inside a
	// list leaves a null hole, matching the upstream store's behavior.
	Delete(ctx context.Context, path string) error

	// ArmOnDisconnect registers a best-effort deletion of path to run
	// when FireDisconnect is called for connID. Advisory only: no
	// delivery guarantee, no retry.
	ArmOnDisconnect(connID, path string)

	// DisarmOnDisconnect drops all cleanups registered for connID.
	DisarmOnDisconnect(connID string)

	// FireDisconnect runs and clears the cleanups registered for connID.
	FireDisconnect(connID string)
}
