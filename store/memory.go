package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"medvault/retrieval"
	"medvault/types"
)

// MemoryStore keeps records in process memory. It backs tests and
// single-node demo deployments where Postgres is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*types.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		records: make(map[int64]*types.Record),
	}
}

func (m *MemoryStore) CreateRecord(ctx context.Context, rec types.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Payload = copyPayload(rec.Payload)
	m.records[rec.ID] = &rec
	return rec.ID, nil
}

func (m *MemoryStore) GetRecord(ctx context.Context, id int64) (*types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.Payload = copyPayload(rec.Payload)
	return &out, nil
}

func (m *MemoryStore) SetAnchor(ctx context.Context, id int64, digest, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Digest = digest
	rec.AnchorTxID = txID
	return nil
}

func (m *MemoryStore) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Embedding = append([]float32(nil), embedding...)
	return nil
}

func (m *MemoryStore) UpdatePayload(ctx context.Context, id int64, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Payload = copyPayload(payload)
	return nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, owner string, limit int) ([]types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []types.Record
	for _, rec := range m.records {
		if rec.OwnerLabel != owner {
			continue
		}
		out := *rec
		out.Payload = copyPayload(rec.Payload)
		records = append(records, out)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) SearchSimilar(ctx context.Context, embedding []float32, excludeID int64, limit int) ([]types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []types.Record
	for _, rec := range m.records {
		if rec.ID == excludeID || len(rec.Embedding) == 0 {
			continue
		}
		out := *rec
		out.Payload = copyPayload(rec.Payload)
		out.Distance = retrieval.Cosine(embedding, rec.Embedding)
		records = append(records, out)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Distance != records[j].Distance {
			return records[i].Distance > records[j].Distance
		}
		return records[i].ID < records[j].ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func copyPayload(payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
