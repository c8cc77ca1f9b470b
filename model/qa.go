package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Answer is the best contiguous span the QA model found, with its
// confidence in [0,1]. An empty Text with zero Confidence means the model
// had no good answer; callers decide how to surface that.
type Answer struct {
	Text       string
	Confidence float64
}

// Answerer runs extractive question answering over a context string. Safe
// to call concurrently for independent queries.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string) (Answer, error)
}

// HTTPAnswerer talks to a BERT-SQuAD style question-answering inference
// endpoint (transformers pipeline behind HTTP).
type HTTPAnswerer struct {
	apiURL        string
	client        *http.Client
	contextBudget int
}

type qaRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaResponse struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

func NewHTTPAnswerer(apiURL string, contextBudget int) *HTTPAnswerer {
	return &HTTPAnswerer{
		apiURL:        apiURL,
		client:        &http.Client{Timeout: 60 * time.Second},
		contextBudget: contextBudget,
	}
}

func (a *HTTPAnswerer) Answer(ctx context.Context, question, contextText string) (Answer, error) {
	req := qaRequest{
		Question: question,
		Context:  TrimToTokenBudget(contextText, a.contextBudget),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to marshal qa request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to create qa request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to call qa api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Answer{}, fmt.Errorf("qa api error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var qaResp qaResponse
	if err := json.NewDecoder(resp.Body).Decode(&qaResp); err != nil {
		return Answer{}, fmt.Errorf("failed to decode qa response: %w", err)
	}

	return Answer{Text: qaResp.Answer, Confidence: qaResp.Score}, nil
}

// TrimToTokenBudget cuts text down to roughly budget tokens so the QA
// model's input window is never exceeded. Falls back to a word-count cut
// when the tokenizer is unavailable offline.
func TrimToTokenBudget(text string, budget int) string {
	if budget <= 0 {
		return text
	}

	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		words := strings.Fields(text)
		if len(words) <= budget {
			return text
		}
		return strings.Join(words[:budget], " ")
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}
