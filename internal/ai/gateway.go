package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Gateway is the HTTP client for the internal AI inference service.
type Gateway struct {
	BaseURL string
	Client  *http.Client
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// HistoryTurn is one prior question/answer pair sent as conversational
// context, oldest first.
type HistoryTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AskRequest struct {
	Question      string        `json:"question"`
	SessionID     uint64        `json:"session_id"`
	SubcategoryID uint64        `json:"subcategory_id"`
	ChatHistory   []HistoryTurn `json:"chat_history"`
}

// AskResponse carries the AI answer. SourceDocID is a sentinel: 0 means
// the answer has no source document.
type AskResponse struct {
	Answer      string `json:"answer"`
	SourceDocID uint64 `json:"source_document_id"`
	SourceURL   string `json:"source_url"`
	SourceTitle string `json:"source_title"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ProcessRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	SubcategoryID uint64   `json:"subcategory_id"`
	Keywords      []string `json:"keywords"`
	Solution      *string  `json:"solution"`
	SourceURL     *string  `json:"source_url"`
}

// ProcessedDocument is one chunk the AI service produced from a raw
// knowledge document.
type ProcessedDocument struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Solution      string    `json:"solution"`
	Embedding     []float64 `json:"embedding"`
	SubcategoryID uint64    `json:"subcategory_id"`
	Keywords      []string  `json:"keywords"`
}

type processResponse struct {
	Data []ProcessedDocument `json:"data"`
}

type pendencyRequest struct {
	Question       string `json:"question"`
	ConsultationID uint64 `json:"consultation_id"`
}

func (g *Gateway) post(ctx context.Context, path string, in, out any) error {
	if g.Client == nil {
		return errors.New("ai: http client is nil")
	}

	b, err := json.Marshal(in)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s", g.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ai: %s status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Ask answers one question with conversational context. Fatal on the
// miss path: without an answer there is nothing to persist.
func (g *Gateway) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var out AskResponse
	if err := g.post(ctx, "/api/ask", req, &out); err != nil {
		return nil, err
	}
	if out.Answer == "" {
		return nil, errors.New("ai: empty answer")
	}
	return &out, nil
}

// Embed returns the embedding vector for text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	var out embedResponse
	if err := g.post(ctx, "/api/askembedding/", embedRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// ProcessDocument sends raw knowledge-document content for chunking and
// embedding; the result is persisted by the knowledge service.
func (g *Gateway) ProcessDocument(ctx context.Context, req ProcessRequest) ([]ProcessedDocument, error) {
	var out processResponse
	if err := g.post(ctx, "/api/documents/process", req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ReportPendency flags a question that received unhelpful feedback for
// offline analysis. Best effort; callers log and continue on error.
func (g *Gateway) ReportPendency(ctx context.Context, question string, consultationID uint64) error {
	return g.post(ctx, "/api/pendencies/", pendencyRequest{
		Question:       question,
		ConsultationID: consultationID,
	}, nil)
}
