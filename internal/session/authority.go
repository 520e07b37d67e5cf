package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/supportdesk/platform/internal/auth"
	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")

	// ErrMalformedCredential means the bearer token itself did not
	// decode; ErrSessionInvalid means it decoded but its embedded
	// session was superseded by a later login or a logout. Both reject
	// the request, but a client prompts re-login only on the latter.
	ErrMalformedCredential = errors.New("session: malformed credential")
	ErrSessionInvalid      = errors.New("session: session invalid")
)

// Authority enforces single-active-session-per-user. Login replaces the
// user's session row; validation checks the row on every request and
// fails closed when the store is unreachable.
type Authority struct {
	repo      *Repo
	jwtSecret string
	jwtTTL    time.Duration
}

func NewAuthority(repo *Repo, jwtSecret string, jwtTTL time.Duration) *Authority {
	if jwtTTL <= 0 {
		jwtTTL = 8 * time.Hour
	}
	return &Authority{repo: repo, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

type LoginResult struct {
	Token string
	User  *models.User
}

// Authenticate verifies the credentials, supersedes any prior session
// for the user and issues a JWT bound to the new session token.
func (a *Authority) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := a.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	sess := &models.ActiveSession{
		SessionToken: uuid.NewString(),
		UserID:       user.ID,
	}
	if err := a.repo.ReplaceActiveSession(ctx, sess); err != nil {
		return nil, err
	}

	claims := auth.Claims{
		UserID:       user.ID,
		SessionToken: sess.SessionToken,
		Name:         user.Name,
		Email:        user.Email,
		ProfileID:    user.ProfileID,
	}
	if user.Profile != nil {
		claims.ProfileName = user.Profile.Name
	}

	token, err := auth.SignJWT(claims, a.jwtSecret, a.jwtTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// Validate checks the bearer credential and its embedded session.
// Unlike the answer cache, this path fails closed: a store error
// rejects the request.
func (a *Authority) Validate(ctx context.Context, bearer string) (*auth.Claims, error) {
	claims, err := auth.ParseJWT(bearer, a.jwtSecret)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	if _, err := a.repo.FindActiveSession(ctx, claims.SessionToken, claims.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		log.Printf("[SessionAuthority] session check failed user_id=%d err=%v", claims.UserID, err)
		return nil, err
	}
	return claims, nil
}

// Terminate logs out one specific session reference.
func (a *Authority) Terminate(ctx context.Context, sessionToken string) error {
	return a.repo.DeleteActiveSession(ctx, sessionToken)
}
