package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	pdfmodel "github.com/unidoc/unipdf/v3/model"
)

// NoReadableText is the sentinel payload for documents where both
// extraction stages came back empty. It is a valid payload, not an error:
// the record is still created and later queries short-circuit to a canned
// response.
const NoReadableText = "No readable text found."

// ErrExtraction means both stages failed hard. The ingest is aborted and
// nothing is persisted.
var ErrExtraction = errors.New("error processing document")

// StageFunc is one extraction strategy. Empty output with nil error means
// "nothing found here, try the next stage".
type StageFunc func(ctx context.Context, path string) (string, error)

var licenseOnce sync.Once

func setupLicense() {
	licenseOnce.Do(func() {
		key := os.Getenv("UNIDOC_LICENSE_KEY")
		if key == "" {
			return
		}
		if err := license.SetMeteredKey(key); err != nil {
			slog.Default().Warn("failed to set unidoc license key", "error", err)
		}
	})
}

// Extractor turns a PDF into plain text: native text layer first, OCR over
// rendered page images second. Extraction is CPU and IO heavy, so calls
// are funneled through a bounded worker pool and awaited, keeping request
// goroutines responsive under load.
type Extractor struct {
	textLayer StageFunc
	ocr       StageFunc
	slots     chan struct{}
	logger    *slog.Logger
}

func New(ocrClient *OCRClient, workers int) *Extractor {
	if workers <= 0 {
		workers = 2
	}
	setupLicense()
	e := &Extractor{
		slots:  make(chan struct{}, workers),
		logger: slog.Default(),
	}
	e.textLayer = textLayerPDF
	e.ocr = func(ctx context.Context, path string) (string, error) {
		return ocrPDF(ctx, ocrClient, path)
	}
	return e
}

// NewWithStages builds an extractor with injected stage functions.
func NewWithStages(textLayer, ocr StageFunc, workers int) *Extractor {
	if workers <= 0 {
		workers = 2
	}
	return &Extractor{
		textLayer: textLayer,
		ocr:       ocr,
		slots:     make(chan struct{}, workers),
		logger:    slog.Default(),
	}
}

// Extract runs the fallback chain on a worker slot. First non-empty result
// wins; both stages empty yields the NoReadableText sentinel; both stages
// failing yields ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-e.slots }()
		text, err := e.extract(ctx, path)
		ch <- result{text, err}
	}()

	select {
	case res := <-ch:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Extractor) extract(ctx context.Context, path string) (string, error) {
	text, textErr := e.textLayer(ctx, path)
	if textErr == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	if textErr != nil {
		e.logger.Warn("text layer extraction failed, trying OCR", "path", path, "error", textErr)
	} else {
		e.logger.Info("no embedded text layer, using OCR fallback", "path", path)
	}

	ocrText, ocrErr := e.ocr(ctx, path)
	if ocrErr == nil && strings.TrimSpace(ocrText) != "" {
		return strings.TrimSpace(ocrText), nil
	}

	if textErr != nil && ocrErr != nil {
		e.logger.Error("both extraction stages failed", "path", path, "text_error", textErr, "ocr_error", ocrErr)
		return "", fmt.Errorf("%w: %s", ErrExtraction, ocrErr)
	}
	return NoReadableText, nil
}

// textLayerPDF pulls the embedded text layer out of each page.
func textLayerPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfReader, err := pdfmodel.NewPdfReader(f)
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
