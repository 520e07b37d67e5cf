package consultation

import (
	"context"

	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a repo bound to one relational
// transaction; any error rolls the whole transaction back.
func (r *Repo) Transaction(ctx context.Context, fn func(txRepo *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) GetChatSession(ctx context.Context, id uint64) (*models.ChatSession, error) {
	var s models.ChatSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) CreateChatSession(ctx context.Context, s *models.ChatSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) SaveChatSession(ctx context.Context, s *models.ChatSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repo) CreateConsultation(ctx context.Context, c *models.Consultation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) CreateResponse(ctx context.Context, resp *models.Response) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

// ListAnsweredHistory returns the most recent limit consultations of a
// session that already have a response, oldest first, ready to be sent
// as conversational context.
func (r *Repo) ListAnsweredHistory(ctx context.Context, sessionID uint64, limit int) ([]models.Consultation, error) {
	if limit <= 0 {
		limit = 5
	}
	var recentDesc []models.Consultation
	if err := r.db.WithContext(ctx).
		Joins("JOIN responses ON responses.consultation_id = consultations.id").
		Where("consultations.session_id = ?", sessionID).
		Order("consultations.id DESC").
		Limit(limit).
		Preload("Response").
		Find(&recentDesc).Error; err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	out := make([]models.Consultation, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		out = append(out, recentDesc[i])
	}
	return out, nil
}

// ListBySession returns the full transcript of a session, oldest first.
func (r *Repo) ListBySession(ctx context.Context, sessionID uint64) ([]models.Consultation, error) {
	var out []models.Consultation
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Preload("Response").
		Preload("Subcategory").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetResponseByConsultation(ctx context.Context, consultationID uint64) (*models.Response, error) {
	var resp models.Response
	if err := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Preload("SourceDoc").
		First(&resp).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}
