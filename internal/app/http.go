package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type updateDecoder func(r *http.Request) (*tgbotapi.Update, error)

// newHTTPHandler serves GET /healthz and, when updates is non-nil,
// POST /webhook for Telegram.
func newHTTPHandler(log *zap.Logger, db pinger, decode updateDecoder, updates chan<- tgbotapi.Update) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", healthHandler(db))
	if updates != nil {
		r.POST("/webhook", webhookHandler(log, decode, updates))
	}
	return r
}

func healthHandler(db pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// webhookHandler decodes a Telegram update and hands it to the update loop.
// Telegram retries non-2xx answers, so a full queue returns 503.
func webhookHandler(log *zap.Logger, decode updateDecoder, updates chan<- tgbotapi.Update) gin.HandlerFunc {
	return func(c *gin.Context) {
		upd, err := decode(c.Request)
		if err != nil {
			log.Warn("bad webhook payload", zap.Error(err))
			c.Status(http.StatusBadRequest)
			return
		}
		select {
		case updates <- *upd:
			c.Status(http.StatusOK)
		case <-c.Request.Context().Done():
			c.Status(http.StatusServiceUnavailable)
		case <-time.After(5 * time.Second):
			log.Warn("update queue full, asking telegram to retry", zap.Int("update_id", upd.UpdateID))
			c.Status(http.StatusServiceUnavailable)
		}
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
