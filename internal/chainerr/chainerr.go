// Package chainerr defines the sentinel error values shared by the
// blockarchive, kvstore, chainstore and synchronizer packages.
//
// Errors are plain sentinels wrapped with fmt.Errorf's %w verb at the call
// site, so callers can use errors.Is/errors.As without a bespoke error type
// hierarchy. Retryable KV errors never reach this layer: kvstore resolves
// them internally (see kvstore.IsRetryable) and only surfaces the terminal
// outcome.
package chainerr

import "errors"

var (
	// ErrBlockNotFound is returned when a requested block hash or id has no
	// corresponding record in the archive or the chain store.
	ErrBlockNotFound = errors.New("block not found")

	// ErrBlockExists is returned by archive writers when a block with the
	// same hash is already present.
	ErrBlockExists = errors.New("block already exists")

	// ErrParentNotFound is returned by ChainStore.StoreBlockInfo when the
	// candidate's header references a previous-hash that is not indexed.
	ErrParentNotFound = errors.New("parent block not found")

	// ErrBlockchainUnknown is a configuration error: the configured
	// blockchain name does not match any known genesis profile.
	ErrBlockchainUnknown = errors.New("unknown blockchain")

	// ErrChainStoreNotEnabled is a configuration error: the chain store was
	// used while chain_store.enabled is false.
	ErrChainStoreNotEnabled = errors.New("chain store not enabled")

	// ErrBlockArchiveNotEnabled is a configuration error: the archive was
	// used while block_archive.enabled is false.
	ErrBlockArchiveNotEnabled = errors.New("block archive not enabled")

	// ErrClosed is returned by the actor handle when a request is made
	// after Shutdown has completed.
	ErrClosed = errors.New("chain store handle closed")

	// ErrHeaderDecode marks a corrupt or truncated 80-byte header blob.
	ErrHeaderDecode = errors.New("invalid block header encoding")
)

// Internal wraps an unexpected condition inside the actor or pipeline that
// is not one of the domain sentinels above but must still propagate instead
// of panicking.
type Internal struct {
	Op  string
	Err error
}

func (e *Internal) Error() string {
	if e.Err == nil {
		return "internal error: " + e.Op
	}
	return "internal error: " + e.Op + ": " + e.Err.Error()
}

func (e *Internal) Unwrap() error { return e.Err }

// NewInternal builds an *Internal error tagged with the failing operation.
func NewInternal(op string, err error) error {
	return &Internal{Op: op, Err: err}
}
