package session

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

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("email = ?", email).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ReplaceActiveSession deletes every active-session row for the user
// and inserts the fresh one in a single transaction, so there is no
// window with two valid sessions.
func (r *Repo) ReplaceActiveSession(ctx context.Context, s *models.ActiveSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", s.UserID).
			Delete(&models.ActiveSession{}).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
}

func (r *Repo) FindActiveSession(ctx context.Context, token string, userID uint64) (*models.ActiveSession, error) {
	var s models.ActiveSession
	if err := r.db.WithContext(ctx).
		Where("session_token = ? AND user_id = ?", token, userID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) DeleteActiveSession(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("session_token = ?", token).
		Delete(&models.ActiveSession{}).Error
}
