// Package kvstore is the thin binding to the transactional KV substrate
// described in spec.md §4.2 (C2). It wraps the official FoundationDB Go
// client (github.com/apple/foundationdb/bindings/go), which is the direct
// Go analog of the directory/tuple/transaction model original_source's
// fdb_chain_store.rs is written against (see DESIGN.md).
//
// The adapter does not interpret values: callers in the chainstore package
// own the tuple encoding and key layout.
package kvstore

import (
	"strings"
	"sync"

	"github.com/apple/foundationdb/bindings/go/src/fdb"
	"github.com/apple/foundationdb/bindings/go/src/fdb/directory"
)

// apiVersion is pinned once per process, matching the way every FDB Go
// client binds a single API version at startup.
const apiVersion = 710

var apiVersionOnce sync.Once
var apiVersionErr error

// DB is a handle to one FoundationDB cluster. It is safe for concurrent use
// by value/reference, matching spec.md §5's "shared-resource policy".
type DB struct {
	fdb fdb.Database
}

// Open binds the FDB client API and connects using the given cluster file
// (empty string selects the default cluster file, matching fdb.OpenDefault
// semantics).
func Open(clusterFile string) (*DB, error) {
	apiVersionOnce.Do(func() {
		apiVersionErr = fdb.APIVersion(apiVersion)
	})
	if apiVersionErr != nil {
		return nil, apiVersionErr
	}
	var (
		fdbDB fdb.Database
		err   error
	)
	if clusterFile == "" {
		fdbDB, err = fdb.OpenDefault()
	} else {
		fdbDB, err = fdb.OpenDatabase(clusterFile)
	}
	if err != nil {
		return nil, err
	}
	return &DB{fdb: fdbDB}, nil
}

// Directory is an opened directory-layer prefix: spec.md §4.1's
// directory_prefix. It wraps a DirectorySubspace so callers can Pack/Unpack
// tuple keys rooted at this directory.
type Directory struct {
	sub directory.DirectorySubspace
}

// Bytes returns the raw key prefix for this directory.
func (d Directory) Bytes() []byte { return []byte(d.sub.Bytes()) }

// Pack appends a tuple onto the directory's prefix, producing an
// order-preserving key (spec.md §4.1).
func (d Directory) Pack(t Tuple) []byte {
	return []byte(d.sub.Pack(fdb.Tuple(t)))
}

// Unpack decodes a key previously produced by Pack back into a tuple, minus
// the directory prefix.
func (d Directory) Unpack(key []byte) (Tuple, error) {
	t, err := d.sub.Unpack(fdb.Key(key))
	if err != nil {
		return nil, err
	}
	return Tuple(t), nil
}

// OpenOrCreateDirectory implements spec.md §4.2's open_or_create: it
// atomically creates the directory if absent, or opens the existing one.
// path components are the logical directory path (e.g. []string{"bsvmain"}
// or []string{"bsvmain", "infos"}).
func (db *DB) OpenOrCreateDirectory(path []string) (Directory, error) {
	sub, err := directory.CreateOrOpen(db.fdb, path, nil)
	if err != nil {
		return Directory{}, err
	}
	return Directory{sub: sub}, nil
}

// RemoveDirectory deletes a directory subtree; used only by test teardown
// per spec.md §4.2.
func (db *DB) RemoveDirectory(path []string) error {
	_, err := db.fdb.Transact(func(tr fdb.Transaction) (interface{}, error) {
		ok, err := directory.Root().Remove(tr, path)
		if err != nil {
			return nil, err
		}
		_ = ok
		return nil, nil
	})
	return err
}

// RootPathComponents splits a configured root_path (spec.md §6) on "/" into
// directory path components, dropping empty segments.
func RootPathComponents(rootPath string) []string {
	parts := strings.Split(rootPath, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tuple is a type-tagged, order-preserving logical tuple, re-exported so
// that chainstore never has to import the fdb package directly (spec.md
// §4.1). It delegates entirely to the FDB tuple layer's encoding, which
// already satisfies the codec's described contract (ordered primitives,
// nested tuples, nil).
type Tuple fdb.Tuple

// PackTuple encodes a standalone tuple (not rooted at any directory), used
// for the STATE_KEY/NEXT_ID_KEY singleton values and for BlockInfo/ChainState
// value blobs (spec.md §4.1).
func PackTuple(t Tuple) []byte {
	return []byte(fdb.Tuple(t).Pack())
}

// UnpackTuple decodes a standalone tuple previously produced by PackTuple.
func UnpackTuple(b []byte) (Tuple, error) {
	t, err := fdb.Unpack(b)
	if err != nil {
		return nil, err
	}
	return Tuple(t), nil
}

// AsNestedTuple converts an element previously read out of a decoded Tuple
// into a Tuple, if it holds a nested tuple. The FDB tuple layer decodes
// nested tuples as fdb.Tuple regardless of the named type the outer tuple
// was converted to, so callers outside this package cannot type-assert
// directly against Tuple; this helper hides that.
func AsNestedTuple(v interface{}) (Tuple, bool) {
	nested, ok := v.(fdb.Tuple)
	if !ok {
		return nil, false
	}
	return Tuple(nested), true
}

// Transact runs fn inside a single retrying read-write transaction,
// matching spec.md §4.2's "transaction() — a scope within which
// get/set/cancel/commit are performed; commits may fail with a retryable
// code": the FDB client's Transact already performs that retry internally
// for every error class except the ones we want to observe (see
// NewManualTransaction below for the long-running ancestor walk, which cannot
// use this helper because it must resume a cursor across resets).
func (db *DB) Transact(fn func(tr Transaction) error) error {
	_, err := db.fdb.Transact(func(tr fdb.Transaction) (interface{}, error) {
		return nil, fn(Transaction{tr: tr})
	})
	return err
}

// ReadTransact runs fn inside a retrying read-only (snapshot-consistent)
// transaction.
func (db *DB) ReadTransact(fn func(tr Transaction) error) error {
	_, err := db.fdb.ReadTransact(func(tr fdb.ReadTransaction) (interface{}, error) {
		return nil, fn(Transaction{tr: tr})
	})
	return err
}

// NewManualTransaction creates a transaction the caller drives explicitly:
// used by the ancestor stream (spec.md §4.3), which must keep a cursor
// alive across a "transaction too old" reset that an automatic retry helper
// would otherwise hide.
func (db *DB) NewManualTransaction() (*ManualTransaction, error) {
	tr, err := db.fdb.CreateTransaction()
	if err != nil {
		return nil, err
	}
	return &ManualTransaction{db: db.fdb, tr: tr}, nil
}

// Transaction is a bound scope for get/set operations, matching spec.md
// §4.2. A zero-value Transaction is not usable. tr is an fdb.ReadTransaction
// because that interface is satisfied by both read-only and read-write FDB
// transactions; Set type-asserts up to fdb.Transaction where mutation is
// valid.
type Transaction struct {
	tr fdb.ReadTransaction
}

// Get retrieves the value at key, or (nil, false) if absent (spec.md §4.2
// "get(key, snapshot?) -> Option<bytes>").
func (t Transaction) Get(key []byte) ([]byte, bool, error) {
	v, err := t.tr.Get(fdb.Key(key)).Get()
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value at key. Only valid on a read-write Transaction; calling
// it against a read-only scope panics, matching the FDB client's own
// behavior of rejecting writes in read-only transactions.
func (t Transaction) Set(key, value []byte) {
	t.tr.(fdb.Transaction).Set(fdb.Key(key), value)
}

// ManualTransaction is a caller-driven transaction used for the
// long-running ancestor stream (spec.md §4.3). It must be explicitly
// Commit()ed or Cancel()ed, and can be Reset() after a retryable error.
type ManualTransaction struct {
	db fdb.Database
	tr fdb.Transaction
}

// Txn exposes the Get/Set surface of the manual transaction.
func (m *ManualTransaction) Txn() Transaction { return Transaction{tr: m.tr} }

// Commit attempts to commit the transaction, blocking until the outcome is
// known.
func (m *ManualTransaction) Commit() error {
	return m.tr.Commit().Get()
}

// Cancel releases a read-only transaction without committing (spec.md §4.2
// "cancel() releases read-only transactions without commit").
func (m *ManualTransaction) Cancel() {
	m.tr.Cancel()
}

// Reset discards all mutations/reads performed so far and rebinds the
// transaction to a fresh read version, used after IsRetryable(err) is true.
func (m *ManualTransaction) Reset() {
	m.tr.Reset()
}

// transactionTooOld is the FDB error code surfaced when a transaction has
// outlived the ~5 second read-version window (spec.md §5 "Timeouts").
const transactionTooOld = 1007

// IsRetryable reports whether err is the "transaction too old" code that
// callers must handle locally by resetting the transaction and continuing,
// per spec.md §4.2 and §7.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	fdbErr, ok := err.(fdb.Error)
	return ok && fdbErr.Code == transactionTooOld
}
