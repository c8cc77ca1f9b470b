package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"medvault/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrNotFound = errors.New("record not found")

// RecordStorer is the persistence boundary for medical records. The core
// treats it as a key-value interface keyed by integer id; the engine
// behind it is interchangeable.
type RecordStorer interface {
	CreateRecord(context.Context, types.Record) (int64, error)
	GetRecord(context.Context, int64) (*types.Record, error)
	SetAnchor(ctx context.Context, id int64, digest, txID string) error
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
	UpdatePayload(ctx context.Context, id int64, payload map[string]string) error
	ListByOwner(ctx context.Context, owner string, limit int) ([]types.Record, error)
	SearchSimilar(ctx context.Context, embedding []float32, excludeID int64, limit int) ([]types.Record, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) CreateRecord(ctx context.Context, rec types.Record) (int64, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return 0, err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	query := `INSERT INTO records (owner_label, payload, digest, anchor_tx, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err = p.pool.QueryRow(ctx, query, rec.OwnerLabel, payload, rec.Digest, rec.AnchorTxID, createdAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *PostgresStore) GetRecord(ctx context.Context, id int64) (*types.Record, error) {
	query := `SELECT id, owner_label, payload, digest, anchor_tx, created_at
		FROM records WHERE id = $1`

	rec := &types.Record{}
	var payload []byte
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.OwnerLabel,
		&payload,
		&rec.Digest,
		&rec.AnchorTxID,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetAnchor writes digest and transaction id together: a digest computed
// but never anchored is discarded by the caller, not stored as pending.
func (p *PostgresStore) SetAnchor(ctx context.Context, id int64, digest, txID string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE records SET digest = $2, anchor_tx = $3 WHERE id = $1`, id, digest, txID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := p.pool.Exec(ctx, `UPDATE records SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(embedding))
	return err
}

func (p *PostgresStore) UpdatePayload(ctx context.Context, id int64, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE records SET payload = $2 WHERE id = $1`, id, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, owner string, limit int) ([]types.Record, error) {
	// LIMIT NULL means no limit; zero would return nothing.
	var lim any
	if limit > 0 {
		lim = limit
	}

	query := `SELECT id, owner_label, payload, digest, anchor_tx, created_at
		FROM records WHERE owner_label = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := p.pool.Query(ctx, query, owner, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var rec types.Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerLabel, &payload, &rec.Digest, &rec.AnchorTxID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SearchSimilar ranks other records by cosine similarity of their
// document-level embeddings. Per-passage vectors are never stored; this
// works off one vector per record written at ingest time.
func (p *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, excludeID int64, limit int) ([]types.Record, error) {
	if len(embedding) == 0 {
		return nil, errors.New("empty query vector")
	}

	query := `SELECT id, owner_label, payload, digest, anchor_tx, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM records
		WHERE embedding IS NOT NULL AND id <> $2
		ORDER BY embedding <=> $1
		LIMIT $3`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var rec types.Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.OwnerLabel, &payload, &rec.Digest, &rec.AnchorTxID, &rec.CreatedAt, &rec.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *PostgresStore) createRecordTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
		owner_label TEXT NOT NULL,
		payload JSONB NOT NULL,
		digest TEXT NOT NULL DEFAULT '',
		anchor_tx TEXT NOT NULL DEFAULT '',
		embedding vector(768),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_label);

	CREATE INDEX IF NOT EXISTS idx_records_embedding ON records USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createRecordTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
