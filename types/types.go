package types

import (
	"time"
)

// Payload keys recognized inside a record's structured payload.
const (
	PayloadNotes     = "notes"
	PayloadPatientID = "patient_id"
)

// Record is a stored medical document. The extracted text lives in the
// structured payload under "notes"; the anchor fields are written together
// or not at all.
type Record struct {
	ID         int64
	OwnerLabel string
	Payload    map[string]string
	Digest     string
	AnchorTxID string
	Embedding  []float32
	Distance   float64
	CreatedAt  time.Time
}

// Anchored reports whether the record carries a ledger anchor. Digest and
// AnchorTxID are set in the same update, so checking one is enough.
func (r *Record) Anchored() bool {
	return r.AnchorTxID != ""
}

func (r *Record) Notes() string {
	return r.Payload[PayloadNotes]
}

// VerificationOutcome is recomputed on every query, never cached.
type VerificationOutcome struct {
	Matched          bool
	RecomputedDigest string
}

type Config struct {
	ServerAddr     string
	TempDir        string
	MaxFileSize    int64
	ChunkSize      int
	TopK           int
	ContextBudget  int
	PermissiveAuth bool
}

type LoaderConfig struct {
	SourceDir  string
	ArchiveDir string
	BadDir     string
	OwnerLabel string
}
