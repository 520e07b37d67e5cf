package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/config"
	"github.com/supportdesk/platform/internal/httpapi/handlers"
	"github.com/supportdesk/platform/internal/httpapi/middleware"
	"github.com/supportdesk/platform/internal/store/rabbitmq"
	"github.com/supportdesk/platform/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, rabbit)

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/login", h.Login)
	r.POST("/password/forgot", h.ForgotPassword)
	r.POST("/password/reset", h.ResetPassword)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Authority))

	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/password", h.UpdatePassword)

	// users (admin surface)
	authGroup.POST("/users", h.CreateUser)
	authGroup.GET("/users", h.ListUsers)
	authGroup.GET("/users/:id", h.GetUserByID)
	authGroup.PUT("/users/:id/active", h.SetUserActive)

	// chat
	authGroup.POST("/chat/sessions", h.StartChatSession)
	authGroup.PUT("/chat/sessions/:session_id/end", h.EndChatSession)
	authGroup.GET("/chat/sessions/:session_id/consultations", h.ListSessionConsultations)
	authGroup.GET("/chat/consultations/:consultation_id/response", h.GetConsultationResponse)
	authGroup.POST("/chat/ask", h.Ask)
	authGroup.POST("/feedbacks", h.CreateFeedback)
	authGroup.GET("/feedbacks", h.ListFeedbacks)

	// knowledge base
	authGroup.POST("/categories", h.CreateCategory)
	authGroup.GET("/categories", h.ListCategories)
	authGroup.PUT("/categories/:id", h.UpdateCategory)
	authGroup.DELETE("/categories/:id", h.DeleteCategory)

	authGroup.POST("/subcategories", h.CreateSubcategory)
	authGroup.GET("/subcategories", h.ListSubcategories)
	authGroup.PUT("/subcategories/:id", h.UpdateSubcategory)
	authGroup.DELETE("/subcategories/:id", h.DeleteSubcategory)

	authGroup.GET("/keywords", h.ListKeywords)
	authGroup.POST("/keywords", h.CreateKeyword)
	authGroup.PUT("/keywords/:id", h.UpdateKeyword)
	authGroup.DELETE("/keywords/:id", h.DeleteKeyword)

	authGroup.POST("/documents", h.CreateDocument)
	authGroup.POST("/documents/async", h.CreateDocumentAsync)
	authGroup.GET("/documents", h.ListDocuments)
	authGroup.GET("/documents/:id", h.GetDocument)
	authGroup.PUT("/documents/:id", h.UpdateDocument)
	authGroup.DELETE("/documents/:id", h.DeleteDocument)
	authGroup.GET("/ingest-jobs/:job_id", h.GetIngestJob)

	authGroup.GET("/pending-topics", h.ListPendingTopics)
	authGroup.POST("/pending-topics", h.CreatePendingTopic)
	authGroup.PUT("/pending-topics/:id", h.UpdatePendingTopic)
	authGroup.DELETE("/pending-topics/:id", h.DeletePendingTopic)

	return r
}
