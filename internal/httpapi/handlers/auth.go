package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/auth"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/email"
	"github.com/supportdesk/platform/internal/httpapi/middleware"
	"github.com/supportdesk/platform/internal/models"
	"github.com/supportdesk/platform/internal/session"
	"gorm.io/gorm"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	res, err := h.Authority.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			common.Fail(c, http.StatusUnauthorized, 40104, "invalid credentials or inactive user")
			return
		}
		log.Printf("[Login] failed email=%s err=%v", req.Email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	user := gin.H{
		"id":    res.User.ID,
		"name":  res.User.Name,
		"email": res.User.Email,
	}
	if res.User.Profile != nil {
		user["profile"] = gin.H{
			"id":   res.User.Profile.ID,
			"name": res.User.Profile.Name,
		}
	}

	common.OK(c, gin.H{
		"token": res.Token,
		"user":  user,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if err := h.Authority.Terminate(c.Request.Context(), claims.SessionToken); err != nil {
		log.Printf("[Logout] failed user_id=%d err=%v", claims.UserID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"logged_out": true})
}

func (h *Handler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, user)
}

type forgotPasswordReq struct {
	Email string `json:"email"`
}

// ForgotPassword always answers the same way, found or not, to avoid
// leaking which emails exist.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email required")
		return
	}

	neutral := gin.H{"message": "if the email exists, a recovery code was sent"}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		common.OK(c, neutral)
		return
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	token := hex.EncodeToString(raw)
	expires := time.Now().Add(time.Hour)
	user.ResetToken = &token
	user.ResetExpires = &expires
	if err := h.DB.Save(&user).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	go func(to, tok string) {
		if err := email.SendPasswordReset(h.SMTPSetting, to, tok); err != nil {
			log.Printf("[ForgotPassword] mail failed to=%s err=%v", to, err)
		}
	}(user.Email, token)

	common.OK(c, neutral)
}

type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "token and password required")
		return
	}

	var user models.User
	if err := h.DB.
		Where("reset_token = ? AND reset_expires > ?", req.Token, time.Now()).
		First(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10030, "recovery token invalid or expired")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}
	user.PasswordHash = hash
	user.ResetToken = nil
	user.ResetExpires = nil
	if err := h.DB.Save(&user).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"message": "password reset"})
}

type updatePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updatePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "current_password and new_password required")
		return
	}

	var user models.User
	if err := h.DB.First(&user, claims.UserID).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		common.Fail(c, http.StatusUnauthorized, 40105, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}
	user.PasswordHash = hash
	if err := h.DB.Save(&user).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"message": "password updated"})
}

func claimsFromContext(c *gin.Context) *auth.Claims {
	v, ok := c.Get(middleware.ClaimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
