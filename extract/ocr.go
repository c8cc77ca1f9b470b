package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// OCRClient recognizes text in page images through an HTTP OCR service
// (a tesseract server or compatible endpoint).
type OCRClient struct {
	apiURL string
	client *http.Client
}

type ocrRequest struct {
	Image string `json:"image"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

func NewOCRClient(apiURL string) *OCRClient {
	return &OCRClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Recognize sends one base64-encoded page image and returns the
// recognized text.
func (c *OCRClient) Recognize(ctx context.Context, imageBase64 string) (string, error) {
	body, err := json.Marshal(ocrRequest{Image: imageBase64})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ocr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call ocr api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr api error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	return ocrResp.Text, nil
}

// ocrPDF renders the document's page images into a scratch directory and
// feeds them through the OCR service, concatenating per-page output with
// newline separators.
func ocrPDF(ctx context.Context, client *OCRClient, path string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no ocr service configured")
	}

	imgDir := filepath.Join(os.TempDir(), "medvault-ocr-"+uuid.New().String())
	if err := os.MkdirAll(imgDir, 0755); err != nil {
		return "", err
	}
	defer os.RemoveAll(imgDir)

	if err := api.ExtractImagesFile(path, imgDir, nil, nil); err != nil {
		return "", fmt.Errorf("failed to extract page images: %w", err)
	}

	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	// Page order matters for the concatenated text.
	sort.Strings(names)

	var pages []string
	for _, name := range names {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		data, err := os.ReadFile(filepath.Join(imgDir, name))
		if err != nil {
			return "", err
		}
		text, err := client.Recognize(ctx, base64.StdEncoding.EncodeToString(data))
		if err != nil {
			return "", err
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
