package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"medvault/auth"
	"medvault/extract"
	"medvault/service"
	"medvault/store"
	"medvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const allowedExtension = ".pdf"

type RecordHandler struct {
	svc *service.Service
	cfg types.Config
}

func NewRecordHandler(svc *service.Service, cfg types.Config) *RecordHandler {
	return &RecordHandler{
		svc: svc,
		cfg: cfg,
	}
}

// HandleUpload ingests one medical PDF: validate, extract, fingerprint,
// anchor, store. The temp file cleanup is deferred so it runs whether or
// not the request succeeded.
func (h *RecordHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != allowedExtension {
		return ErrUnsupportedFileType(allowedExtension)
	}
	if fileHeader.Size > h.cfg.MaxFileSize {
		return ErrFileTooLarge(h.cfg.MaxFileSize)
	}

	owner := c.FormValue("username")
	if owner == "" {
		return NewValidationError(map[string]string{"username": "failed on 'required' tag"})
	}

	path := filepath.Join(h.cfg.TempDir, uuid.New().String()+"_"+filepath.Base(fileHeader.Filename))
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}
	defer os.Remove(path)

	result, err := h.svc.Ingest(c.Context(), service.IngestRequest{
		Path:       path,
		OwnerLabel: owner,
		PatientID:  c.FormValue("patient_id"),
	})
	if err != nil {
		if errors.Is(err, extract.ErrExtraction) {
			return ErrProcessingFailed()
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(types.UploadResponse{
		Message:      "Medical record uploaded successfully",
		RecordID:     result.RecordID,
		BlockchainTx: result.AnchorTxID,
		TextLength:   result.TextLength,
		HashValue:    result.Digest,
	})
}

// HandleAsk answers a question against one record and reports the
// verification flag alongside the answer.
func (h *RecordHandler) HandleAsk(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return ErrInvalidID()
	}

	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if strings.TrimSpace(params.Question) == "" {
		return NewValidationError(map[string]string{"question": "failed on 'required' tag"})
	}

	principal, ok := c.Locals(auth.PrincipalKey).(auth.Principal)
	if !ok {
		return ErrUnAuthorized("missing caller identity")
	}

	result, err := h.svc.Query(c.Context(), service.QueryRequest{
		RecordID:  int64(id),
		Question:  params.Question,
		Principal: principal,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrNotFound(id, "medical record")
		case errors.Is(err, service.ErrForbidden):
			return ErrForbidden()
		}
		return err
	}

	return c.JSON(types.AskResponse{
		Query:              result.Query,
		Response:           result.Response,
		Confidence:         result.Confidence,
		BlockchainVerified: result.Verified,
		RecordHash:         result.RecordHash,
	})
}

func (h *RecordHandler) HandleGetRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return ErrInvalidID()
	}

	rec, err := h.svc.GetRecord(c.Context(), int64(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "medical record")
		}
		return err
	}

	return c.JSON(types.RecordResponse{
		ID:           rec.ID,
		Title:        fmt.Sprintf("Medical Record %d", rec.ID),
		UploadDate:   rec.CreatedAt,
		Verified:     rec.Anchored(),
		Content:      rec.Notes(),
		BlockchainTx: rec.AnchorTxID,
	})
}

func (h *RecordHandler) HandleSimilar(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return ErrInvalidID()
	}
	limit := c.QueryInt("limit", 5)

	records, err := h.svc.SimilarRecords(c.Context(), int64(id), limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "medical record")
		}
		return err
	}

	out := make([]types.SimilarRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, types.SimilarRecord{
			ID:         rec.ID,
			OwnerLabel: rec.OwnerLabel,
			Similarity: rec.Distance,
			UploadDate: rec.CreatedAt,
		})
	}
	return c.JSON(out)
}

func (h *RecordHandler) HandleDashboard(c *fiber.Ctx) error {
	principal, ok := c.Locals(auth.PrincipalKey).(auth.Principal)
	if !ok {
		return ErrUnAuthorized("missing caller identity")
	}

	owner := c.Query("owner", principal.Subject)
	dash, err := h.svc.Dashboard(c.Context(), owner)
	if err != nil {
		return err
	}
	return c.JSON(dash)
}

func (h *RecordHandler) HandleGeneralChat(c *fiber.Ctx) error {
	var params types.GeneralChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	return c.JSON(types.AskResponse{
		Query:              params.Question,
		Response:           h.svc.GeneralChat(params.Question),
		Confidence:         1.0,
		BlockchainVerified: false,
	})
}
