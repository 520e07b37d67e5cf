package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supportdesk/platform/internal/ai"
	"github.com/supportdesk/platform/internal/cache"
	"github.com/supportdesk/platform/internal/common"
	"github.com/supportdesk/platform/internal/config"
	"github.com/supportdesk/platform/internal/consultation"
	"github.com/supportdesk/platform/internal/email"
	"github.com/supportdesk/platform/internal/knowledge"
	"github.com/supportdesk/platform/internal/session"
	"github.com/supportdesk/platform/internal/store/rabbitmq"
	"github.com/supportdesk/platform/internal/store/redisstore"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Authority   *session.Authority
	ConsultSvc  *consultation.Service
	KnowSvc     *knowledge.Service
	Rabbit      *rabbitmq.Publisher
	SMTPSetting email.SMTPConfig
}

func NewHandler(gdb *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *Handler {
	gateway := ai.NewGateway(cfg.AIBaseURL, cfg.AITimeout)
	answers := cache.NewCoordinator(rds.Client, cfg.AnswerCacheTTL)

	authority := session.NewAuthority(session.NewRepo(gdb), cfg.JWTSecret, cfg.JWTTTL)
	consultSvc := consultation.NewService(consultation.NewRepo(gdb), gateway, answers, cfg.HistoryWindowSize)
	knowSvc := knowledge.NewService(knowledge.NewRepo(gdb), gateway, answers)

	return &Handler{
		DB:         gdb,
		Cfg:        cfg,
		Authority:  authority,
		ConsultSvc: consultSvc,
		KnowSvc:    knowSvc,
		Rabbit:     rabbit,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// failErr maps service-layer errors to the response envelope using the
// error-kind taxonomy.
func failErr(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	msg := "internal error"
	var e *common.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	code := 50001
	switch status {
	case http.StatusBadRequest:
		code = 10001
	case http.StatusNotFound:
		code = 40401
	case http.StatusConflict:
		code = 40901
	case http.StatusUnauthorized:
		code = 40101
	case http.StatusBadGateway:
		code = 50201
	}
	common.Fail(c, status, code, msg)
}
