package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/supportdesk/platform/internal/ai"
	"github.com/supportdesk/platform/internal/cache"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

// AIGateway is the slice of the inference service the orchestrator
// needs; tests substitute a recording fake.
type AIGateway interface {
	Ask(ctx context.Context, req ai.AskRequest) (*ai.AskResponse, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Service runs the question-answer flow: cache lookup, hit or miss
// path, transactional persistence, post-commit cache populate.
type Service struct {
	repo     *Repo
	gw       AIGateway
	answers  *cache.Coordinator
	historyN int
}

func NewService(repo *Repo, gw AIGateway, answers *cache.Coordinator, historyN int) *Service {
	if historyN <= 0 || historyN > 50 {
		historyN = 5
	}
	return &Service{repo: repo, gw: gw, answers: answers, historyN: historyN}
}

type AskInput struct {
	Question      string
	SessionID     uint64
	SubcategoryID uint64
}

type AskResult struct {
	Answer         string  `json:"answer"`
	ResponseID     uint64  `json:"response_id"`
	ConsultationID uint64  `json:"consultation_id"`
	SourceDocID    *uint64 `json:"source_document_id"`
	SourceURL      *string `json:"source_url"`
	SourceTitle    string  `json:"source_title"`
	CacheHit       bool    `json:"-"`
}

// sourceDocRef maps the gateway's zero sentinel ("no source document")
// to a proper NULL foreign key.
func sourceDocRef(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ask executes one consultation turn. On a cache hit no gateway call is
// made; on a miss the answer call is fatal and rolls back the whole
// transaction, while embedding and cache failures only degrade.
func (s *Service) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	if strings.TrimSpace(in.Question) == "" || in.SessionID == 0 || in.SubcategoryID == 0 {
		return nil, common.E(common.KindInvalidInput, "question, session_id and subcategory_id are required")
	}

	if _, err := s.repo.GetChatSession(ctx, in.SessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "chat session not found")
		}
		return nil, err
	}

	key := cache.Key(in.SubcategoryID, in.Question)

	if payload, hit := s.answers.Lookup(ctx, key); hit {
		log.Printf("[Consultation] cache hit key=%s", key)
		return s.answerFromCache(ctx, in, payload)
	}

	log.Printf("[Consultation] cache miss key=%s", key)
	return s.answerFromGateway(ctx, in, key)
}

// answerFromCache persists a consultation/response pair from the cached
// payload in one transaction. The consultation carries no embedding.
func (s *Service) answerFromCache(ctx context.Context, in AskInput, payload *cache.AnswerPayload) (*AskResult, error) {
	var result AskResult
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		cons := &models.Consultation{
			SessionID:     in.SessionID,
			SubcategoryID: in.SubcategoryID,
			Question:      in.Question,
		}
		if err := tx.CreateConsultation(ctx, cons); err != nil {
			return common.TranslateDBError(err)
		}

		resp := &models.Response{
			ConsultationID: cons.ID,
			AnswerText:     payload.Answer,
			SourceDocID:    sourceDocRef(payload.SourceDocID),
			SourceURL:      nullableStr(payload.SourceURL),
		}
		if err := tx.CreateResponse(ctx, resp); err != nil {
			return common.TranslateDBError(err)
		}

		result = AskResult{
			Answer:         resp.AnswerText,
			ResponseID:     resp.ID,
			ConsultationID: cons.ID,
			SourceDocID:    resp.SourceDocID,
			SourceURL:      resp.SourceURL,
			SourceTitle:    payload.SourceTitle,
			CacheHit:       true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// answerFromGateway runs the miss path: history, best-effort embedding,
// transactional consultation + fatal ask + response, then a post-commit
// cache populate so a rolled-back turn can never leave a cache entry.
func (s *Service) answerFromGateway(ctx context.Context, in AskInput, key string) (*AskResult, error) {
	history, err := s.repo.ListAnsweredHistory(ctx, in.SessionID, s.historyN)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.HistoryTurn, 0, len(history))
	for _, h := range history {
		answer := ""
		if h.Response != nil {
			answer = h.Response.AnswerText
		}
		turns = append(turns, ai.HistoryTurn{Question: h.Question, Answer: answer})
	}

	// Embeddings are an optimization; a failure here degrades to a
	// consultation stored without one.
	var embedding *string
	if vec, err := s.gw.Embed(ctx, in.Question); err != nil {
		log.Printf("[Consultation] embedding failed session_id=%d err=%v", in.SessionID, err)
	} else if len(vec) > 0 {
		if raw, err := json.Marshal(vec); err == nil {
			str := string(raw)
			embedding = &str
		}
	}

	var result AskResult
	var askResp *ai.AskResponse
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		cons := &models.Consultation{
			SessionID:     in.SessionID,
			SubcategoryID: in.SubcategoryID,
			Question:      in.Question,
			Embedding:     embedding,
		}
		if err := tx.CreateConsultation(ctx, cons); err != nil {
			return common.TranslateDBError(err)
		}

		askResp, err = s.gw.Ask(ctx, ai.AskRequest{
			Question:      in.Question,
			SessionID:     in.SessionID,
			SubcategoryID: in.SubcategoryID,
			ChatHistory:   turns,
		})
		if err != nil {
			return common.Wrap(common.KindUpstream, "ai answer failed", err)
		}

		resp := &models.Response{
			ConsultationID: cons.ID,
			AnswerText:     askResp.Answer,
			SourceDocID:    sourceDocRef(askResp.SourceDocID),
			SourceURL:      nullableStr(askResp.SourceURL),
		}
		if err := tx.CreateResponse(ctx, resp); err != nil {
			return common.TranslateDBError(err)
		}

		result = AskResult{
			Answer:         resp.AnswerText,
			ResponseID:     resp.ID,
			ConsultationID: cons.ID,
			SourceDocID:    resp.SourceDocID,
			SourceURL:      resp.SourceURL,
			SourceTitle:    askResp.SourceTitle,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.answers.Populate(ctx, key, &cache.AnswerPayload{
		Answer:      askResp.Answer,
		SourceDocID: askResp.SourceDocID,
		SourceURL:   askResp.SourceURL,
		SourceTitle: askResp.SourceTitle,
	})

	return &result, nil
}

// StartSession opens a chat session for the user.
func (s *Service) StartSession(ctx context.Context, userID uint64) (*models.ChatSession, error) {
	sess := &models.ChatSession{UserID: userID, StartedAt: time.Now()}
	if err := s.repo.CreateChatSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// EndSession stamps the session end time. Ending twice keeps the first
// stamp.
func (s *Service) EndSession(ctx context.Context, sessionID uint64) (*models.ChatSession, error) {
	sess, err := s.repo.GetChatSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "chat session not found")
		}
		return nil, err
	}
	if sess.EndedAt == nil {
		now := time.Now()
		sess.EndedAt = &now
		if err := s.repo.SaveChatSession(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Transcript lists all consultations of a session, oldest first.
func (s *Service) Transcript(ctx context.Context, sessionID uint64) ([]models.Consultation, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// ResponseForConsultation returns the answer recorded for one
// consultation, with its source document when one was cited.
func (s *Service) ResponseForConsultation(ctx context.Context, consultationID uint64) (*models.Response, error) {
	resp, err := s.repo.GetResponseByConsultation(ctx, consultationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "no response for this consultation")
		}
		return nil, err
	}
	return resp, nil
}
