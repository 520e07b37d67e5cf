package knowledge

import (
	"context"
	"strings"

	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Transaction(ctx context.Context, fn func(txRepo *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// --- categories ---

func (r *Repo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetCategory(ctx context.Context, id uint64) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) SaveCategory(ctx context.Context, c *models.Category) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *Repo) DeleteCategory(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Category{}, id).Error
}

// --- subcategories ---

func (r *Repo) CreateSubcategory(ctx context.Context, s *models.Subcategory) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) ListSubcategories(ctx context.Context, categoryID uint64) ([]models.Subcategory, error) {
	q := r.db.WithContext(ctx).Preload("Category").Order("name ASC")
	if categoryID > 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	var out []models.Subcategory
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetSubcategory(ctx context.Context, id uint64) (*models.Subcategory, error) {
	var s models.Subcategory
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) SaveSubcategory(ctx context.Context, s *models.Subcategory) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repo) DeleteSubcategory(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Subcategory{}, id).Error
}

// --- keywords ---

// FindOrCreateKeyword normalizes the word and reuses an existing row
// when present.
func (r *Repo) FindOrCreateKeyword(ctx context.Context, word string) (*models.Keyword, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	var k models.Keyword
	err := r.db.WithContext(ctx).
		Where("word = ?", word).
		FirstOrCreate(&k, models.Keyword{Word: word}).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *Repo) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	var out []models.Keyword
	if err := r.db.WithContext(ctx).Order("word ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetKeyword(ctx context.Context, id uint64) (*models.Keyword, error) {
	var k models.Keyword
	if err := r.db.WithContext(ctx).First(&k, id).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *Repo) FindKeywordByWord(ctx context.Context, word string) (*models.Keyword, error) {
	var k models.Keyword
	if err := r.db.WithContext(ctx).Where("word = ?", word).First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *Repo) SaveKeyword(ctx context.Context, k *models.Keyword) error {
	return r.db.WithContext(ctx).Save(k).Error
}

func (r *Repo) DeleteKeyword(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Keyword{}, id).Error
}

// --- documents ---

func (r *Repo) CreateDocument(ctx context.Context, d *models.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repo) AttachKeywords(ctx context.Context, d *models.Document, kws []models.Keyword) error {
	if len(kws) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(d).Association("Keywords").Append(kws)
}

func (r *Repo) GetDocument(ctx context.Context, id uint64) (*models.Document, error) {
	var d models.Document
	if err := r.db.WithContext(ctx).
		Preload("Subcategory").
		Preload("Keywords").
		First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) ListDocuments(ctx context.Context, subcategoryID uint64) ([]models.Document, error) {
	q := r.db.WithContext(ctx).
		Where("active = ?", true).
		Preload("Subcategory").
		Preload("Keywords").
		Order("id DESC")
	if subcategoryID > 0 {
		q = q.Where("subcategory_id = ?", subcategoryID)
	}
	var out []models.Document
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) SaveDocument(ctx context.Context, d *models.Document) error {
	return r.db.WithContext(ctx).Save(d).Error
}

// --- feedback / pending topics ---

func (r *Repo) GetResponseWithConsultation(ctx context.Context, responseID uint64) (*models.Response, *models.Consultation, error) {
	var resp models.Response
	if err := r.db.WithContext(ctx).First(&resp, responseID).Error; err != nil {
		return nil, nil, err
	}
	var cons models.Consultation
	if err := r.db.WithContext(ctx).First(&cons, resp.ConsultationID).Error; err != nil {
		return nil, nil, err
	}
	return &resp, &cons, nil
}

func (r *Repo) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repo) ListFeedbacks(ctx context.Context) ([]models.Feedback, error) {
	var out []models.Feedback
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetConsultation(ctx context.Context, id uint64) (*models.Consultation, error) {
	var c models.Consultation
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) CreatePendingTopic(ctx context.Context, p *models.PendingTopic) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetPendingTopic(ctx context.Context, id uint64) (*models.PendingTopic, error) {
	var p models.PendingTopic
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) SavePendingTopic(ctx context.Context, p *models.PendingTopic) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *Repo) DeletePendingTopic(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.PendingTopic{}, id).Error
}

func (r *Repo) ListPendingTopics(ctx context.Context) ([]models.PendingTopic, error) {
	var out []models.PendingTopic
	if err := r.db.WithContext(ctx).
		Preload("Consultation").
		Preload("Subcategory").
		Preload("Subcategory.Category").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// --- ingest jobs ---

func (r *Repo) CreateIngestJob(ctx context.Context, j *models.IngestJob) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *Repo) GetIngestJob(ctx context.Context, id string) (*models.IngestJob, error) {
	var j models.IngestJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) MarkIngestRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", id, models.IngestQueued).
		Update("status", models.IngestRunning).Error
}

func (r *Repo) MarkIngestSucceeded(ctx context.Context, id string, created int) error {
	return r.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.IngestSucceeded,
			"documents_created": created,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkIngestFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.IngestFailed,
			"error":             errMsg,
			"documents_created": nil,
		}).Error
}
