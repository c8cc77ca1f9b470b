package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"medvault/auth"
	"medvault/extract"
	"medvault/ledger"
	"medvault/model"
	"medvault/retrieval"
	"medvault/store"
	"medvault/types"
)

// NoContentResponse is the canned answer for records whose extraction
// yielded no readable text. Retrieval and QA are skipped entirely for
// those.
const NoContentResponse = "The document doesn't contain useful medical information."

// NoAnswerResponse is returned when the QA model has no good span.
const NoAnswerResponse = "No relevant information found."

var ErrForbidden = errors.New("access to this record is not permitted")

// Service is the pipeline orchestrator: it wires extraction, fingerprinting
// and anchoring on ingest, and retrieval, answering and verification on
// query. The embedding and QA models are process-wide lazy singletons owned
// here and shared read-only across requests.
type Service struct {
	store      store.RecordStorer
	anchorer   ledger.Anchorer
	extractor  *extract.Extractor
	authorizer auth.Authorizer
	cfg        types.Config
	logger     *slog.Logger

	embedOnce   sync.Once
	embedder    model.Embedder
	newEmbedder func() model.Embedder

	answerOnce  sync.Once
	answerer    model.Answerer
	newAnswerer func() model.Answerer
}

func New(
	storer store.RecordStorer,
	anchorer ledger.Anchorer,
	extractor *extract.Extractor,
	authorizer auth.Authorizer,
	newEmbedder func() model.Embedder,
	newAnswerer func() model.Answerer,
	cfg types.Config,
) *Service {
	return &Service{
		store:       storer,
		anchorer:    anchorer,
		extractor:   extractor,
		authorizer:  authorizer,
		newEmbedder: newEmbedder,
		newAnswerer: newAnswerer,
		cfg:         cfg,
		logger:      slog.Default(),
	}
}

// Embedder returns the shared embedding model, constructing it on first
// use. The cold-start cost is paid once per process.
func (s *Service) Embedder() model.Embedder {
	s.embedOnce.Do(func() {
		s.embedder = s.newEmbedder()
	})
	return s.embedder
}

func (s *Service) Answerer() model.Answerer {
	s.answerOnce.Do(func() {
		s.answerer = s.newAnswerer()
	})
	return s.answerer
}

type IngestRequest struct {
	Path       string
	OwnerLabel string
	PatientID  string
}

type IngestResult struct {
	RecordID   int64
	Digest     string
	AnchorTxID string
	TextLength int
}

// Ingest runs extraction, record creation, fingerprinting and anchoring.
// Anchoring is all-or-nothing from the caller's perspective: the digest is
// persisted only together with a transaction id. A ledger failure leaves
// the record valid but unanchored.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	text, err := s.extractor.Extract(ctx, req.Path)
	if err != nil {
		s.logger.Error("ingest failed at extraction", "owner", req.OwnerLabel, "error", err)
		return IngestResult{}, err
	}

	payload := map[string]string{types.PayloadNotes: text}
	if req.PatientID != "" {
		payload[types.PayloadPatientID] = req.PatientID
	}

	id, err := s.store.CreateRecord(ctx, types.Record{
		OwnerLabel: req.OwnerLabel,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("ingest failed at record creation", "owner", req.OwnerLabel, "error", err)
		return IngestResult{}, fmt.Errorf("create record: %w", err)
	}

	result := IngestResult{RecordID: id, TextLength: len(text)}

	digest := ledger.Digest(payload)
	txID, err := s.anchorer.Anchor(ctx, digest)
	if err != nil {
		// Recoverable: the record stays valid, just unanchored.
		s.logger.Warn("anchoring failed, record stored unanchored", "record", id, "error", err)
		txID = ""
	}
	if txID != "" {
		if err := s.store.SetAnchor(ctx, id, digest, txID); err != nil {
			s.logger.Error("failed to persist anchor", "record", id, "tx", txID, "error", err)
			return result, nil
		}
		result.Digest = digest
		result.AnchorTxID = txID
	}

	// Document-level embedding for similar-case search; best effort, the
	// sentinel payload has nothing worth embedding.
	if text != extract.NoReadableText {
		if vec, err := s.Embedder().Embed(ctx, text); err != nil {
			s.logger.Warn("document embedding failed", "record", id, "error", err)
		} else if err := s.store.SetEmbedding(ctx, id, vec); err != nil {
			s.logger.Warn("failed to store document embedding", "record", id, "error", err)
		}
	}

	return result, nil
}

type QueryRequest struct {
	RecordID  int64
	Question  string
	Principal auth.Principal
}

type QueryResult struct {
	Query      string
	Response   string
	Confidence float64
	Verified   bool
	RecordHash string
}

// Query answers a question against one record. Verification runs alongside
// the retrieval path and its outcome is attached to the answer either way:
// a mismatch signals tampering but never blocks the response.
func (s *Service) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	rec, err := s.store.GetRecord(ctx, req.RecordID)
	if err != nil {
		return QueryResult{}, err
	}

	if !s.authorizer.CanAccess(req.Principal, rec) {
		s.logger.Warn("record access denied", "record", req.RecordID, "subject", req.Principal.Subject)
		return QueryResult{}, ErrForbidden
	}

	notes := rec.Notes()
	if notes == "" || notes == extract.NoReadableText {
		return QueryResult{
			Query:    req.Question,
			Response: NoContentResponse,
		}, nil
	}

	// Verification is independent of the answer outcome; recomputed fresh
	// on every query so drift since the last anchor is always caught.
	verified := make(chan types.VerificationOutcome, 1)
	go func() {
		verified <- types.VerificationOutcome{
			Matched:          ledger.Verify(rec.Payload, rec.Digest),
			RecomputedDigest: ledger.Digest(rec.Payload),
		}
	}()

	answer, err := s.answerFromNotes(ctx, req.Question, notes)
	outcome := <-verified
	if err != nil {
		s.logger.Error("query failed", "record", req.RecordID, "error", err)
		return QueryResult{}, err
	}

	if !outcome.Matched && rec.Anchored() {
		s.logger.Warn("digest mismatch, record may have been altered",
			"record", rec.ID, "stored", rec.Digest, "recomputed", outcome.RecomputedDigest)
	}

	response := answer.Text
	if response == "" {
		response = NoAnswerResponse
	}

	return QueryResult{
		Query:      req.Question,
		Response:   response,
		Confidence: answer.Confidence,
		Verified:   outcome.Matched,
		RecordHash: rec.Digest,
	}, nil
}

func (s *Service) answerFromNotes(ctx context.Context, question, notes string) (model.Answer, error) {
	chunks := retrieval.ChunkText(notes, s.cfg.ChunkSize)
	if len(chunks) == 0 {
		return model.Answer{}, nil
	}

	queryVec, err := s.Embedder().Embed(ctx, question)
	if err != nil {
		return model.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	vecs, err := model.EmbedAll(ctx, s.Embedder(), chunks)
	if err != nil {
		return model.Answer{}, fmt.Errorf("embed passages: %w", err)
	}

	ranked := retrieval.Rank(queryVec, chunks, vecs)
	contextText := retrieval.TopContext(ranked, s.cfg.TopK)

	answer, err := s.Answerer().Answer(ctx, question, contextText)
	if err != nil {
		return model.Answer{}, fmt.Errorf("extract answer: %w", err)
	}
	return answer, nil
}

// GetRecord loads a record for its metadata view.
func (s *Service) GetRecord(ctx context.Context, id int64) (*types.Record, error) {
	return s.store.GetRecord(ctx, id)
}

// SimilarRecords finds other records close to this one in embedding space.
func (s *Service) SimilarRecords(ctx context.Context, id int64, limit int) ([]types.Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	vec := rec.Embedding
	if len(vec) == 0 {
		notes := rec.Notes()
		if notes == "" || notes == extract.NoReadableText {
			return nil, nil
		}
		if vec, err = s.Embedder().Embed(ctx, notes); err != nil {
			return nil, fmt.Errorf("embed record: %w", err)
		}
	}
	return s.store.SearchSimilar(ctx, vec, id, limit)
}

// Dashboard aggregates per-owner totals the way the patient dashboard
// shows them.
func (s *Service) Dashboard(ctx context.Context, owner string) (types.DashboardResponse, error) {
	records, err := s.store.ListByOwner(ctx, owner, 0)
	if err != nil {
		return types.DashboardResponse{}, err
	}

	resp := types.DashboardResponse{
		Owner:        owner,
		TotalRecords: len(records),
	}
	for i := range records {
		if records[i].Anchored() {
			resp.AnchoredRecords++
		}
	}
	if len(records) > 0 {
		resp.LastUpload = &records[0].CreatedAt
		recent := records
		if len(recent) > 5 {
			recent = recent[:5]
		}
		for _, rec := range recent {
			resp.RecentRecords = append(resp.RecentRecords, types.RecordResponse{
				ID:           rec.ID,
				Title:        fmt.Sprintf("Medical Record %d", rec.ID),
				UploadDate:   rec.CreatedAt,
				Verified:     rec.Anchored(),
				BlockchainTx: rec.AnchorTxID,
			})
		}
	}
	return resp, nil
}

var generalResponses = map[string]string{
	"hello": "Hello! How can I help you today?",
	"help":  "I can help you with questions about your medical records. Try uploading a record first.",
}

// GeneralChat handles questions that are not tied to a record.
func (s *Service) GeneralChat(question string) string {
	if resp, ok := generalResponses[normalizeQuestion(question)]; ok {
		return resp
	}
	return "I'm a medical assistant chatbot. Please ask me questions about your medical records."
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
