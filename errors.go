package stocker

import "errors"

var (
	// ErrInvalidInput is returned when a transaction or cash flow is rejected at append time.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPriceUnavailable is returned by a PriceSource that has no price for a symbol.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrRateUnavailable is returned when no exchange rate exists for a currency pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrInconsistentLedger is returned when a symbol's history cannot be replayed.
	ErrInconsistentLedger = errors.New("inconsistent ledger")
	// ErrSnapshotConflict is returned by a SnapshotStore when a row already exists for (user, date).
	ErrSnapshotConflict = errors.New("snapshot already exists")
	// ErrSnapshotNotFound is returned by a SnapshotStore lookup that matches no row.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrNotFound is returned when a ledger entry id does not exist.
	ErrNotFound = errors.New("not found")
)
