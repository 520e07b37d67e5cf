package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/supportdesk/platform/internal/ai"
	"github.com/supportdesk/platform/internal/cache"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

// AIGateway is the slice of the inference service the knowledge side
// uses: document processing at ingestion and pendency reporting on
// negative feedback.
type AIGateway interface {
	ProcessDocument(ctx context.Context, req ai.ProcessRequest) ([]ai.ProcessedDocument, error)
	ReportPendency(ctx context.Context, question string, consultationID uint64) error
}

// Service owns knowledge-base CRUD. Every committed document mutation
// clears the whole answer-cache namespace: a single edit can change
// answer relevance for many cached questions.
type Service struct {
	repo    *Repo
	gw      AIGateway
	answers *cache.Coordinator
}

func NewService(repo *Repo, gw AIGateway, answers *cache.Coordinator) *Service {
	return &Service{repo: repo, gw: gw, answers: answers}
}

// --- categories / subcategories / keywords ---

func (s *Service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.E(common.KindInvalidInput, "name is required")
	}
	c := &models.Category{Name: name}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) UpdateCategory(ctx context.Context, id uint64, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.E(common.KindInvalidInput, "name is required")
	}
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "category not found")
		}
		return nil, err
	}
	c.Name = name
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uint64) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.E(common.KindNotFound, "category not found")
		}
		return err
	}
	return common.TranslateDBError(s.repo.DeleteCategory(ctx, id))
}

func (s *Service) CreateSubcategory(ctx context.Context, name string, categoryID uint64) (*models.Subcategory, error) {
	name = strings.TrimSpace(name)
	if name == "" || categoryID == 0 {
		return nil, common.E(common.KindInvalidInput, "name and category_id are required")
	}
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "category not found")
		}
		return nil, err
	}
	sub := &models.Subcategory{Name: name, CategoryID: categoryID}
	if err := s.repo.CreateSubcategory(ctx, sub); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return sub, nil
}

func (s *Service) ListSubcategories(ctx context.Context, categoryID uint64) ([]models.Subcategory, error) {
	return s.repo.ListSubcategories(ctx, categoryID)
}

// UpdateSubcategory renames the subcategory and optionally moves it to
// another category (categoryID 0 keeps the current parent).
func (s *Service) UpdateSubcategory(ctx context.Context, id uint64, name string, categoryID uint64) (*models.Subcategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.E(common.KindInvalidInput, "name is required")
	}
	sub, err := s.repo.GetSubcategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "subcategory not found")
		}
		return nil, err
	}
	if categoryID != 0 && categoryID != sub.CategoryID {
		if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, common.E(common.KindNotFound, "category not found")
			}
			return nil, err
		}
		sub.CategoryID = categoryID
		sub.Category = nil
	}
	sub.Name = name
	if err := s.repo.SaveSubcategory(ctx, sub); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return sub, nil
}

func (s *Service) DeleteSubcategory(ctx context.Context, id uint64) error {
	if _, err := s.repo.GetSubcategory(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.E(common.KindNotFound, "subcategory not found")
		}
		return err
	}
	return common.TranslateDBError(s.repo.DeleteSubcategory(ctx, id))
}

func (s *Service) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	return s.repo.ListKeywords(ctx)
}

// CreateKeyword inserts one normalized keyword; an already existing
// word is a conflict, not a silent reuse (bulk ingestion goes through
// find-or-create instead).
func (s *Service) CreateKeyword(ctx context.Context, word string) (*models.Keyword, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, common.E(common.KindInvalidInput, "word is required")
	}
	if _, err := s.repo.FindKeywordByWord(ctx, word); err == nil {
		return nil, common.E(common.KindConflict, "keyword already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	k := &models.Keyword{Word: word}
	if err := s.repo.SaveKeyword(ctx, k); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return k, nil
}

func (s *Service) UpdateKeyword(ctx context.Context, id uint64, word string) (*models.Keyword, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, common.E(common.KindInvalidInput, "word is required")
	}
	k, err := s.repo.GetKeyword(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "keyword not found")
		}
		return nil, err
	}
	k.Word = word
	if err := s.repo.SaveKeyword(ctx, k); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return k, nil
}

func (s *Service) DeleteKeyword(ctx context.Context, id uint64) error {
	if _, err := s.repo.GetKeyword(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.E(common.KindNotFound, "keyword not found")
		}
		return err
	}
	return common.TranslateDBError(s.repo.DeleteKeyword(ctx, id))
}

// --- document ingestion ---

type IngestInput struct {
	Title         string
	Description   string
	Solution      *string
	SubcategoryID uint64
	Keywords      []string
	FileURL       *string
	FilePath      *string
	FileType      *string
}

// IngestDocument sends the raw content through the AI processing
// endpoint and persists every returned chunk as a document in one
// transaction. The answer cache is cleared only after the commit.
func (s *Service) IngestDocument(ctx context.Context, in IngestInput) (int, error) {
	if strings.TrimSpace(in.Title) == "" || in.SubcategoryID == 0 {
		return 0, common.E(common.KindInvalidInput, "title and subcategory_id are required")
	}
	if _, err := s.repo.GetSubcategory(ctx, in.SubcategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, common.E(common.KindNotFound, "subcategory not found")
		}
		return 0, err
	}

	processed, err := s.gw.ProcessDocument(ctx, ai.ProcessRequest{
		Title:         in.Title,
		Description:   in.Description,
		SubcategoryID: in.SubcategoryID,
		Keywords:      in.Keywords,
		Solution:      in.Solution,
		SourceURL:     in.FileURL,
	})
	if err != nil {
		return 0, common.Wrap(common.KindUpstream, "ai document processing failed", err)
	}
	log.Printf("[Knowledge] ai returned %d chunk(s) title=%q", len(processed), in.Title)

	created := 0
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		for _, chunk := range processed {
			var embedding *string
			if len(chunk.Embedding) > 0 {
				if raw, err := json.Marshal(chunk.Embedding); err == nil {
					str := string(raw)
					embedding = &str
				}
			}

			doc := &models.Document{
				Title:         chunk.Title,
				Description:   chunk.Description,
				Solution:      chunk.Solution,
				Embedding:     embedding,
				SubcategoryID: chunk.SubcategoryID,
				Active:        true,
				FileURL:       in.FileURL,
				FilePath:      in.FilePath,
				FileType:      in.FileType,
			}
			if err := tx.CreateDocument(ctx, doc); err != nil {
				return common.TranslateDBError(err)
			}

			kws := make([]models.Keyword, 0, len(chunk.Keywords))
			for _, w := range chunk.Keywords {
				if strings.TrimSpace(w) == "" {
					continue
				}
				k, err := tx.FindOrCreateKeyword(ctx, w)
				if err != nil {
					return common.TranslateDBError(err)
				}
				kws = append(kws, *k)
			}
			if err := tx.AttachKeywords(ctx, doc, kws); err != nil {
				return common.TranslateDBError(err)
			}

			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.answers.InvalidateAll(ctx)
	return created, nil
}

type DocumentUpdate struct {
	Title       *string
	Description *string
	Solution    *string
	Active      *bool
}

func (s *Service) UpdateDocument(ctx context.Context, id uint64, upd DocumentUpdate) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "document not found")
		}
		return nil, err
	}
	if upd.Title != nil {
		doc.Title = *upd.Title
	}
	if upd.Description != nil {
		doc.Description = *upd.Description
	}
	if upd.Solution != nil {
		doc.Solution = *upd.Solution
	}
	if upd.Active != nil {
		doc.Active = *upd.Active
	}
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return nil, common.TranslateDBError(err)
	}

	s.answers.InvalidateAll(ctx)
	return doc, nil
}

// DeleteDocument deactivates the document; responses keep their source
// foreign key.
func (s *Service) DeleteDocument(ctx context.Context, id uint64) error {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.E(common.KindNotFound, "document not found")
		}
		return err
	}
	doc.Active = false
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return common.TranslateDBError(err)
	}

	s.answers.InvalidateAll(ctx)
	return nil
}

func (s *Service) GetDocument(ctx context.Context, id uint64) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "document not found")
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, subcategoryID uint64) ([]models.Document, error) {
	return s.repo.ListDocuments(ctx, subcategoryID)
}

// --- feedback / pending topics ---

type FeedbackInput struct {
	ResponseID uint64
	Helpful    *bool
	Score      *float64
	Comment    *string
}

// CreateFeedback records feedback for a response. Unhelpful feedback
// also reports the original question to the AI service for analysis;
// that call is best effort, the feedback is already saved.
func (s *Service) CreateFeedback(ctx context.Context, in FeedbackInput) (*models.Feedback, error) {
	if in.Helpful == nil || in.ResponseID == 0 {
		return nil, common.E(common.KindInvalidInput, "helpful and response_id are required")
	}

	resp, cons, err := s.repo.GetResponseWithConsultation(ctx, in.ResponseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "response not found")
		}
		return nil, err
	}

	fb := &models.Feedback{
		ResponseID:     resp.ID,
		ConsultationID: cons.ID,
		Helpful:        *in.Helpful,
		Score:          in.Score,
		Comment:        in.Comment,
	}
	if err := s.repo.CreateFeedback(ctx, fb); err != nil {
		return nil, common.TranslateDBError(err)
	}

	if !*in.Helpful {
		if err := s.gw.ReportPendency(ctx, cons.Question, cons.ID); err != nil {
			log.Printf("[Knowledge] pendency report failed consultation_id=%d err=%v", cons.ID, err)
		}
	}
	return fb, nil
}

func (s *Service) ListFeedbacks(ctx context.Context) ([]models.Feedback, error) {
	return s.repo.ListFeedbacks(ctx)
}

func (s *Service) CreatePendingTopic(ctx context.Context, consultationID, subcategoryID uint64, topicText string) (*models.PendingTopic, error) {
	topicText = strings.TrimSpace(topicText)
	if consultationID == 0 || subcategoryID == 0 || topicText == "" {
		return nil, common.E(common.KindInvalidInput, "consultation_id, subcategory_id and topic_text are required")
	}
	if _, err := s.repo.GetConsultation(ctx, consultationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "consultation not found")
		}
		return nil, err
	}
	if _, err := s.repo.GetSubcategory(ctx, subcategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "subcategory not found")
		}
		return nil, err
	}
	p := &models.PendingTopic{
		ConsultationID: consultationID,
		SubcategoryID:  subcategoryID,
		TopicText:      topicText,
		Status:         models.PendingTopicOpen,
	}
	if err := s.repo.CreatePendingTopic(ctx, p); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return p, nil
}

func (s *Service) ListPendingTopics(ctx context.Context) ([]models.PendingTopic, error) {
	return s.repo.ListPendingTopics(ctx)
}

// UpdatePendingTopicStatus moves a suggestion through the review
// workflow. The status text is free-form but required.
func (s *Service) UpdatePendingTopicStatus(ctx context.Context, id uint64, status string) (*models.PendingTopic, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, common.E(common.KindInvalidInput, "status is required")
	}
	p, err := s.repo.GetPendingTopic(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "pending topic not found")
		}
		return nil, err
	}
	p.Status = status
	if err := s.repo.SavePendingTopic(ctx, p); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return p, nil
}

func (s *Service) DeletePendingTopic(ctx context.Context, id uint64) error {
	if _, err := s.repo.GetPendingTopic(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.E(common.KindNotFound, "pending topic not found")
		}
		return err
	}
	return s.repo.DeletePendingTopic(ctx, id)
}

// --- async ingestion ---

// EnqueueIngest records an ingest job row; the caller publishes the job
// id to the queue, and the worker runs RunIngestJob.
func (s *Service) EnqueueIngest(ctx context.Context, in IngestInput) (*models.IngestJob, error) {
	if strings.TrimSpace(in.Title) == "" || in.SubcategoryID == 0 {
		return nil, common.E(common.KindInvalidInput, "title and subcategory_id are required")
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	j := &models.IngestJob{
		ID:            id,
		Title:         in.Title,
		Description:   in.Description,
		Solution:      in.Solution,
		SubcategoryID: in.SubcategoryID,
		KeywordsCSV:   strings.Join(in.Keywords, ","),
		FileURL:       in.FileURL,
		FilePath:      in.FilePath,
		FileType:      in.FileType,
		Status:        models.IngestQueued,
	}
	if err := s.repo.CreateIngestJob(ctx, j); err != nil {
		return nil, common.TranslateDBError(err)
	}
	return j, nil
}

func (s *Service) GetIngestJob(ctx context.Context, id string) (*models.IngestJob, error) {
	j, err := s.repo.GetIngestJob(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.E(common.KindNotFound, "ingest job not found")
		}
		return nil, err
	}
	return j, nil
}

// RunIngestJob executes one queued ingest job; called by the worker.
func (s *Service) RunIngestJob(ctx context.Context, id string) error {
	j, err := s.repo.GetIngestJob(ctx, id)
	if err != nil {
		return err
	}
	if j.Status == models.IngestSucceeded || j.Status == models.IngestFailed {
		return nil
	}
	if err := s.repo.MarkIngestRunning(ctx, id); err != nil {
		return err
	}

	var keywords []string
	for _, w := range strings.Split(j.KeywordsCSV, ",") {
		if strings.TrimSpace(w) != "" {
			keywords = append(keywords, strings.TrimSpace(w))
		}
	}

	created, err := s.IngestDocument(ctx, IngestInput{
		Title:         j.Title,
		Description:   j.Description,
		Solution:      j.Solution,
		SubcategoryID: j.SubcategoryID,
		Keywords:      keywords,
		FileURL:       j.FileURL,
		FilePath:      j.FilePath,
		FileType:      j.FileType,
	})
	if err != nil {
		if markErr := s.repo.MarkIngestFailed(ctx, id, err.Error()); markErr != nil {
			log.Printf("[Knowledge] mark failed errored job=%s err=%v", id, markErr)
		}
		return err
	}
	return s.repo.MarkIngestSucceeded(ctx, id, created)
}
