package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/consultation"
)

func (h *Handler) StartChatSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.ConsultSvc.StartSession(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess})
}

func (h *Handler) EndChatSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	sess, err := h.ConsultSvc.EndSession(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess})
}

type askReq struct {
	Question      string `json:"question"`
	SessionID     uint64 `json:"session_id"`
	SubcategoryID uint64 `json:"subcategory_id"`
}

// Ask runs one question-answer turn through the orchestrator.
func (h *Handler) Ask(c *gin.Context) {
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	result, err := h.ConsultSvc.Ask(c.Request.Context(), consultation.AskInput{
		Question:      req.Question,
		SessionID:     req.SessionID,
		SubcategoryID: req.SubcategoryID,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	status := http.StatusCreated
	if result.CacheHit {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"code":    0,
		"message": "ok",
		"data":    result,
	})
}

func (h *Handler) GetConsultationResponse(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("consultation_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid consultation id")
		return
	}

	resp, err := h.ConsultSvc.ResponseForConsultation(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"response": resp})
}

func (h *Handler) ListSessionConsultations(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	consultations, err := h.ConsultSvc.Transcript(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"consultations": consultations})
}
