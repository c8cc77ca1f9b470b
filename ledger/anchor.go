package ledger

import (
	"context"
)

// Anchorer records a digest on an append-only ledger. Implementations must
// treat a failed submission as "no anchor" (empty tx id, nil error is
// allowed only for recoverable conditions like zero balance); they never
// retry on their own.
type Anchorer interface {
	// Anchor submits digest to the ledger and returns the transaction id.
	// An empty id with nil error means the anchor was skipped (unfunded
	// account, disconnected client); the caller proceeds unanchored.
	Anchor(ctx context.Context, digest string) (string, error)

	// Status reports connectivity plus, when connected, live chain height
	// and account balance. Sub-call errors degrade to partial info.
	Status(ctx context.Context) Status

	// Connected reports the connectivity state established at startup.
	Connected() bool
}

// Status is the health view of the ledger backend.
type Status struct {
	Connected   bool
	BlockNumber uint64
	Balance     string
	Err         string
}
