package registry

import "errors"

var (
	// ErrUnknownNode indicates the addressed node is not registered. This
	// usually means a message arrived before the node was initialised.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNodeExists indicates a node with the same ID is already registered.
	ErrNodeExists = errors.New("node already exists")

	// ErrLockUnavailable indicates the registry can no longer be locked
	// since an earlier operation failed while holding the lock, so the
	// registry state can't be trusted.
	ErrLockUnavailable = errors.New("registry lock unavailable")
)
