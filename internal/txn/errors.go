package txn

import "errors"

// Sentinel errors. Callers distinguish protocol violations (fatal to the
// single role instance, never the whole node) from precondition failures
// (a plain early return from the role function) via errors.Is.
var (
	ErrDuplicateListener = errors.New("txn: a listener is already registered for this message type")
	ErrUnknownRole       = errors.New("txn: no such role registered")
	ErrNotOwned          = errors.New("txn: enlist target is not a direct kid of the enlisting node")
)

// protocolViolation wraps an error that Listen/Enlist/SpawnEnlist panics
// with. recoverRole converts it into a logged, isolated role abort instead
// of letting it propagate past the role's own goroutine.
type protocolViolation struct{ err error }

func (p protocolViolation) Error() string { return p.err.Error() }

func (p protocolViolation) Unwrap() error { return p.err }
