package incident

import "errors"

var (
	// ErrLedgerUnavailable indicates the ledger backend could not be reached.
	ErrLedgerUnavailable = errors.New("incident: ledger unavailable")

	// ErrCorruptRecord indicates a stored incident could not be decoded.
	ErrCorruptRecord = errors.New("incident: corrupt ledger record")
)
