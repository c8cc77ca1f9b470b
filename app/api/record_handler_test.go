package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medvault/app/api"
	"medvault/app/middleware"
	"medvault/auth"
	"medvault/extract"
	"medvault/ledger"
	"medvault/model"
	"medvault/service"
	"medvault/store"
	"medvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keywordEmbedder struct{}

var testVocab = []string{"fever", "ibuprofen", "medication", "patient", "takes"}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(testVocab))
	lower := strings.ToLower(text)
	for i, w := range testVocab {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

type echoAnswerer struct{}

func (echoAnswerer) Answer(ctx context.Context, question, contextText string) (model.Answer, error) {
	if strings.Contains(strings.ToLower(contextText), "ibuprofen") {
		return model.Answer{Text: "ibuprofen", Confidence: 0.9}, nil
	}
	return model.Answer{}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	fileStage := func(ctx context.Context, path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	noOCR := func(ctx context.Context, path string) (string, error) { return "", nil }
	extractor := extract.NewWithStages(fileStage, noOCR, 1)

	svc := service.New(
		store.NewMemoryStore(),
		ledger.NewFileAnchorer(filepath.Join(t.TempDir(), "ledger.log")),
		extractor,
		auth.OwnerAuthorizer{},
		func() model.Embedder { return keywordEmbedder{} },
		func() model.Answerer { return echoAnswerer{} },
		types.Config{TempDir: t.TempDir(), MaxFileSize: 1 << 20, ChunkSize: 512, TopK: 2},
	)

	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	handler := api.NewRecordHandler(svc, types.Config{TempDir: t.TempDir(), MaxFileSize: 1 << 20})
	authn := auth.StaticAuthenticator{
		"token-alice":   {Subject: "alice", Role: "patient"},
		"token-mallory": {Subject: "mallory", Role: "patient"},
	}

	app.Post("/api/v1/records", handler.HandleUpload)
	app.Post("/api/v1/chat/general", handler.HandleGeneralChat)
	protected := app.Group("", middleware.Authenticate(authn))
	protected.Post("/api/v1/records/:id/ask", handler.HandleAsk)
	protected.Get("/api/v1/records/:id", handler.HandleGetRecord)
	return app
}

func uploadRequest(t *testing.T, filename, username string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("Patient has fever. Patient takes ibuprofen daily."))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("username", username))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	return out
}

func TestUploadCreatesAnchoredRecord(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "visit.pdf", "alice"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	out := decodeBody[types.UploadResponse](t, resp)
	assert.NotZero(t, out.RecordID)
	assert.NotEmpty(t, out.BlockchainTx)
	assert.Len(t, out.HashValue, 64)
	assert.NotZero(t, out.TextLength)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "visit.txt", "alice"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadRequiresUsername(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "visit.pdf", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func askRequest(t *testing.T, id, question, token string) *http.Request {
	t.Helper()
	body, err := json.Marshal(types.AskParams{Question: question})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/"+id+"/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAskAnswersFromOwnRecord(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "visit.pdf", "alice"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(askRequest(t, "1", "What medication does the patient take?", "token-alice"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeBody[types.AskResponse](t, resp)
	assert.Equal(t, "ibuprofen", out.Response)
	assert.True(t, out.BlockchainVerified)
	assert.NotEmpty(t, out.RecordHash)
}

func TestAskRequiresBearerToken(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(askRequest(t, "1", "anything", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAskDeniesForeignRecord(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "visit.pdf", "alice"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(askRequest(t, "1", "anything", "token-mallory"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAskUnknownRecord(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(askRequest(t, "99", "anything", "token-alice"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGeneralChatCannedResponse(t *testing.T) {
	app := newTestApp(t)

	body, err := json.Marshal(types.GeneralChatParams{Question: "hello"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/general", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeBody[types.AskResponse](t, resp)
	assert.Equal(t, "Hello! How can I help you today?", out.Response)
}

func TestHealthyReportsLedgerStatus(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	handler := api.NewCheckHandler(ledger.NewFileAnchorer(filepath.Join(t.TempDir(), "ledger.log")))
	app.Get("/check/healthy", handler.HandleHealthy)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeBody[types.HealthResponse](t, resp)
	assert.Equal(t, "healthy", out.Status)
	assert.True(t, out.BlockchainConnected)
}
