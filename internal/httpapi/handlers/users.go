package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/auth"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/models"
	"gorm.io/gorm"
)

type createUserReq struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	ProfileID uint64 `json:"profile_id"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" || req.ProfileID == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "name, email, password and profile_id required")
		return
	}

	var profile models.Profile
	if err := h.DB.First(&profile, req.ProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "profile not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Active:       true,
		ProfileID:    req.ProfileID,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusConflict, 40902, "failed to create user (maybe email already exists)")
		return
	}

	common.OK(c, gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"profile_id": user.ProfileID,
	})
}

func (h *Handler) GetUserByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}

	common.OK(c, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Preload("Profile").Order("id ASC").Find(&users).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, gin.H{"users": users})
}

type deactivateUserReq struct {
	Active bool `json:"active"`
}

func (h *Handler) SetUserActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var req deactivateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}

	user.Active = req.Active
	if err := h.DB.Save(&user).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, gin.H{"id": user.ID, "active": user.Active})
}
