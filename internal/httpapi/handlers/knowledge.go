package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/knowledge"
)

// --- categories ---

type categoryReq struct {
	Name string `json:"name"`
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	cat, err := h.KnowSvc.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"category": cat})
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.KnowSvc.ListCategories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"categories": cats})
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid category id")
		return
	}
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	cat, err := h.KnowSvc.UpdateCategory(c.Request.Context(), id, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"category": cat})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid category id")
		return
	}
	if err := h.KnowSvc.DeleteCategory(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

// --- subcategories ---

type subcategoryReq struct {
	Name       string `json:"name"`
	CategoryID uint64 `json:"category_id"`
}

func (h *Handler) CreateSubcategory(c *gin.Context) {
	var req subcategoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sub, err := h.KnowSvc.CreateSubcategory(c.Request.Context(), req.Name, req.CategoryID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"subcategory": sub})
}

func (h *Handler) ListSubcategories(c *gin.Context) {
	var categoryID uint64
	if v := c.Query("category_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			categoryID = n
		}
	}
	subs, err := h.KnowSvc.ListSubcategories(c.Request.Context(), categoryID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"subcategories": subs})
}

type updateSubcategoryReq struct {
	Name       string `json:"name"`
	CategoryID uint64 `json:"category_id"`
}

func (h *Handler) UpdateSubcategory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid subcategory id")
		return
	}
	var req updateSubcategoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sub, err := h.KnowSvc.UpdateSubcategory(c.Request.Context(), id, req.Name, req.CategoryID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"subcategory": sub})
}

func (h *Handler) DeleteSubcategory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid subcategory id")
		return
	}
	if err := h.KnowSvc.DeleteSubcategory(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) ListKeywords(c *gin.Context) {
	kws, err := h.KnowSvc.ListKeywords(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"keywords": kws})
}

type keywordReq struct {
	Word string `json:"word"`
}

func (h *Handler) CreateKeyword(c *gin.Context) {
	var req keywordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	k, err := h.KnowSvc.CreateKeyword(c.Request.Context(), req.Word)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data":    gin.H{"keyword": k},
	})
}

func (h *Handler) UpdateKeyword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid keyword id")
		return
	}
	var req keywordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	k, err := h.KnowSvc.UpdateKeyword(c.Request.Context(), id, req.Word)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"keyword": k})
}

func (h *Handler) DeleteKeyword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid keyword id")
		return
	}
	if err := h.KnowSvc.DeleteKeyword(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

// --- documents ---

type createDocumentReq struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Solution      *string  `json:"solution"`
	SubcategoryID uint64   `json:"subcategory_id"`
	Keywords      []string `json:"keywords"`
	FileURL       *string  `json:"file_url"`
	FilePath      *string  `json:"file_path"`
	FileType      *string  `json:"file_type"`
}

func (r createDocumentReq) ingestInput() knowledge.IngestInput {
	return knowledge.IngestInput{
		Title:         r.Title,
		Description:   r.Description,
		Solution:      r.Solution,
		SubcategoryID: r.SubcategoryID,
		Keywords:      r.Keywords,
		FileURL:       r.FileURL,
		FilePath:      r.FilePath,
		FileType:      r.FileType,
	}
}

// CreateDocument runs the ingestion synchronously: AI processing,
// transactional chunk persistence, then cache invalidation.
func (h *Handler) CreateDocument(c *gin.Context) {
	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	created, err := h.KnowSvc.IngestDocument(c.Request.Context(), req.ingestInput())
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data":    gin.H{"documents_created": created},
	})
}

// CreateDocumentAsync queues the ingestion and returns a job id.
func (h *Handler) CreateDocumentAsync(c *gin.Context) {
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "ingestion queue unavailable")
		return
	}

	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	job, err := h.KnowSvc.EnqueueIngest(c.Request.Context(), req.ingestInput())
	if err != nil {
		failErr(c, err)
		return
	}
	if err := h.Rabbit.PublishIngestJob(c.Request.Context(), job.ID); err != nil {
		log.Printf("[CreateDocumentAsync] publish failed job_id=%s err=%v", job.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}
	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetIngestJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}
	job, err := h.KnowSvc.GetIngestJob(c.Request.Context(), jobID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{
		"job": gin.H{
			"id":                job.ID,
			"status":            job.Status,
			"documents_created": job.DocumentsCreated,
			"error":             job.Error,
			"created_at":        job.CreatedAt,
			"updated_at":        job.UpdatedAt,
		},
	})
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid document id")
		return
	}
	doc, err := h.KnowSvc.GetDocument(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"document": doc})
}

func (h *Handler) ListDocuments(c *gin.Context) {
	var subcategoryID uint64
	if v := c.Query("subcategory_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			subcategoryID = n
		}
	}
	docs, err := h.KnowSvc.ListDocuments(c.Request.Context(), subcategoryID)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"documents": docs})
}

type updateDocumentReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Solution    *string `json:"solution"`
	Active      *bool   `json:"active"`
}

func (h *Handler) UpdateDocument(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid document id")
		return
	}
	var req updateDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	doc, err := h.KnowSvc.UpdateDocument(c.Request.Context(), id, knowledge.DocumentUpdate{
		Title:       req.Title,
		Description: req.Description,
		Solution:    req.Solution,
		Active:      req.Active,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"document": doc})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid document id")
		return
	}
	if err := h.KnowSvc.DeleteDocument(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

// --- feedback / pending topics ---

type feedbackReq struct {
	ResponseID uint64   `json:"response_id"`
	Helpful    *bool    `json:"helpful"`
	Score      *float64 `json:"score"`
	Comment    *string  `json:"comment"`
}

func (h *Handler) CreateFeedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	fb, err := h.KnowSvc.CreateFeedback(c.Request.Context(), knowledge.FeedbackInput{
		ResponseID: req.ResponseID,
		Helpful:    req.Helpful,
		Score:      req.Score,
		Comment:    req.Comment,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"feedback": fb})
}

func (h *Handler) ListFeedbacks(c *gin.Context) {
	fbs, err := h.KnowSvc.ListFeedbacks(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"feedbacks": fbs})
}

type pendingTopicReq struct {
	ConsultationID uint64 `json:"consultation_id"`
	SubcategoryID  uint64 `json:"subcategory_id"`
	TopicText      string `json:"topic_text"`
}

func (h *Handler) CreatePendingTopic(c *gin.Context) {
	var req pendingTopicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.KnowSvc.CreatePendingTopic(c.Request.Context(), req.ConsultationID, req.SubcategoryID, req.TopicText)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"pending_topic": p})
}

type pendingTopicStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) UpdatePendingTopic(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid pending topic id")
		return
	}
	var req pendingTopicStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.KnowSvc.UpdatePendingTopicStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"pending_topic": p})
}

func (h *Handler) DeletePendingTopic(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid pending topic id")
		return
	}
	if err := h.KnowSvc.DeletePendingTopic(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) ListPendingTopics(c *gin.Context) {
	topics, err := h.KnowSvc.ListPendingTopics(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"pending_topics": topics})
}
