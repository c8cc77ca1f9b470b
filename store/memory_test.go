package store

import (
	"context"
	"testing"
	"time"

	"medvault/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	id, err := st.CreateRecord(ctx, types.Record{
		OwnerLabel: "alice",
		Payload:    map[string]string{types.PayloadNotes: "Patient has fever."},
	})
	require.NoError(t, err)

	rec, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.OwnerLabel)
	assert.Equal(t, "Patient has fever.", rec.Notes())
	assert.False(t, rec.Anchored())
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	_, err := NewMemoryStore().GetRecord(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	id, err := st.CreateRecord(ctx, types.Record{
		OwnerLabel: "alice",
		Payload:    map[string]string{types.PayloadNotes: "original"},
	})
	require.NoError(t, err)

	rec, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	rec.Payload[types.PayloadNotes] = "mutated by caller"

	fresh, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Notes())
}

func TestMemoryStoreSetAnchorWritesBothFields(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	id, err := st.CreateRecord(ctx, types.Record{OwnerLabel: "alice", Payload: map[string]string{}})
	require.NoError(t, err)

	require.NoError(t, st.SetAnchor(ctx, id, "abcd", "0xdeadbeef"))

	rec, err := st.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "abcd", rec.Digest)
	assert.Equal(t, "0xdeadbeef", rec.AnchorTxID)
	assert.True(t, rec.Anchored())

	assert.ErrorIs(t, st.SetAnchor(ctx, 99, "x", "y"), ErrNotFound)
}

func TestMemoryStoreListByOwner(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := st.CreateRecord(ctx, types.Record{
			OwnerLabel: "alice",
			Payload:    map[string]string{},
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := st.CreateRecord(ctx, types.Record{OwnerLabel: "bob", Payload: map[string]string{}})
	require.NoError(t, err)

	records, err := st.ListByOwner(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt), "newest first")
}

func TestMemoryStoreSearchSimilar(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	ids := make([]int64, 0, 3)
	for _, vec := range [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}} {
		id, err := st.CreateRecord(ctx, types.Record{OwnerLabel: "alice", Payload: map[string]string{}})
		require.NoError(t, err)
		require.NoError(t, st.SetEmbedding(ctx, id, vec))
		ids = append(ids, id)
	}

	got, err := st.SearchSimilar(ctx, []float32{1, 0}, ids[0], 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[1], got[0].ID, "closest vector ranks first")
	assert.Greater(t, got[0].Distance, got[1].Distance)
}
