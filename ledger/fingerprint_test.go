package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestIsOrderIndependent(t *testing.T) {
	a := map[string]string{"notes": "Patient has fever.", "patient_id": "42"}
	b := map[string]string{"patient_id": "42", "notes": "Patient has fever."}

	assert.Equal(t, Digest(a), Digest(b))
}

func TestDigestIsContentSensitive(t *testing.T) {
	base := map[string]string{"notes": "Patient has fever."}
	changedValue := map[string]string{"notes": "Patient has chills."}
	changedKey := map[string]string{"note": "Patient has fever."}

	d := Digest(base)
	assert.NotEqual(t, d, Digest(changedValue))
	assert.NotEqual(t, d, Digest(changedKey))
}

func TestDigestShape(t *testing.T) {
	d := Digest(map[string]string{"notes": "x"})
	require.Len(t, d, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", d)
}

func TestDigestHandlesSpecialCharacters(t *testing.T) {
	// HTML-ish payload content must not change the canonical form between
	// two runs or two processes.
	p := map[string]string{"notes": `Dosage <5mg> & "twice daily"`}
	assert.Equal(t, Digest(p), Digest(p))
}

func TestVerifyRoundTrip(t *testing.T) {
	payload := map[string]string{"notes": "Patient takes ibuprofen.", "patient_id": "7"}
	digest := Digest(payload)

	assert.True(t, Verify(payload, digest))

	tampered := map[string]string{"notes": "Patient takes aspirin.", "patient_id": "7"}
	assert.False(t, Verify(tampered, digest))
}

func TestVerifyWithoutStoredDigest(t *testing.T) {
	// Absence of a prior anchor is unverifiable, not a mismatch, and must
	// not panic.
	assert.False(t, Verify(map[string]string{"notes": "x"}, ""))
}
