package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github/itish2003/tariff/logger"
	"github/itish2003/tariff/models"
	"github/itish2003/tariff/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService answers one conversational turn.
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// TariffService is the retrieval side used by the direct endpoints.
type TariffService interface {
	Query(ctx context.Context, query, country string, k int) (string, error)
	Refresh(ctx context.Context) (*models.RefreshReport, error)
	Countries() []string
	Unavailable() map[string]string
}

// TariffController handles the HTTP requests of the tariff API. chat may
// be nil when no LLM key is configured.
type TariffController struct {
	chat   ChatService
	tariff TariffService
}

func NewTariffController(chat ChatService, tariff TariffService) *TariffController {
	return &TariffController{chat: chat, tariff: tariff}
}

// Register mounts the API routes on group.
func (c *TariffController) Register(group *gin.RouterGroup) {
	group.POST("/chat", c.Chat)
	group.POST("/tariff/query", c.Query)
	group.GET("/countries", c.Countries)
	group.POST("/countries/refresh", c.Refresh)
}

// Chat is the handler for POST /api/v1/chat.
func (c *TariffController) Chat(ctx *gin.Context) {
	if c.chat == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chat is not configured"})
		return
	}
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := c.chat.Chat(ctx.Request.Context(), req)
	if err != nil {
		logger.FromContext(ctx.Request.Context()).Error("chat failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate AI response"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Query is the handler for POST /api/v1/tariff/query.
func (c *TariffController) Query(ctx *gin.Context) {
	var req models.TariffQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.tariff.Query(ctx.Request.Context(), req.Query, req.Country, req.K)
	if err != nil {
		logger.FromContext(ctx.Request.Context()).Error("tariff query failed",
			zap.String("country", req.Country), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrIndexBackendUnavailable) {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, gin.H{"error": "Failed to query tariff documents"})
		return
	}
	ctx.JSON(http.StatusOK, models.TariffQueryResponse{Result: result})
}

// Countries is the handler for GET /api/v1/countries.
func (c *TariffController) Countries(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.CountriesResponse{
		Countries:   c.tariff.Countries(),
		Unavailable: c.tariff.Unavailable(),
	})
}

// Refresh is the handler for POST /api/v1/countries/refresh.
func (c *TariffController) Refresh(ctx *gin.Context) {
	report, err := c.tariff.Refresh(ctx.Request.Context())
	if err != nil {
		logger.FromContext(ctx.Request.Context()).Error("refresh failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh countries"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// RequestLogger logs every request and stores a request-scoped logger in
// the request context.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		reqID := ctx.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		l := base.With(zap.String("request_id", reqID))
		ctx.Request = ctx.Request.WithContext(logger.WithContext(ctx.Request.Context(), l))
		ctx.Header("X-Request-ID", reqID)

		ctx.Next()

		l.Info("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// CORS allows browser clients during local testing.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
