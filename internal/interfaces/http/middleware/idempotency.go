package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/logger"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader names the client supplied de-duplication key
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader is set on responses replayed from the store
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// storedResponse is what a completed key replays
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// captureWriter tees the response body so it can be stored
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency de-duplicates requests carrying an Idempotency-Key header.
// Keys are scoped to the tenant, the caller and the route. The first 2xx response is stored
// for cfg.TTL and replayed to later requests with the same key; a duplicate
// arriving while the first is still running gets 409. Non-2xx responses
// release the key so the client may retry. Requests without the header
// pass through.
func Idempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig, log *zap.Logger) gin.HandlerFunc {
	if store == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if clientKey == "" {
			c.Next()
			return
		}
		requestID := c.GetString(logger.RequestIDKey)
		if len(clientKey) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", requestID))
			return
		}

		key := "http:" + GetJWTTenantID(c) + ":" + GetJWTUserID(c) + ":" + c.FullPath() + ":" + clientKey
		fields := []zap.Field{zap.String("idempotency_key", clientKey), zap.String("request_id", requestID)}

		reserved, err := store.Reserve(c.Request.Context(), key, cfg.TTL)
		if err != nil {
			log.Error("idempotency reserve failed", append(fields, zap.Error(err))...)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnavailable, "Request de-duplication is unavailable", requestID))
			return
		}
		if !reserved {
			replay(c, store, key, requestID, log, fields)
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// the key must settle even when the client has gone away
		ctx := context.WithoutCancel(c.Request.Context())
		status := w.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			if err := store.Release(ctx, key); err != nil {
				log.Warn("idempotency release failed", append(fields, zap.Error(err))...)
			}
			return
		}
		result, err := json.Marshal(storedResponse{Status: status, Body: json.RawMessage(w.body.Bytes())})
		if err == nil {
			err = store.Complete(ctx, key, string(result), cfg.TTL)
		}
		if err != nil {
			log.Error("idempotency complete failed", append(fields, zap.Error(err))...)
		}
	}
}

func replay(c *gin.Context, store shared.IdempotencyStore, key, requestID string, log *zap.Logger, fields []zap.Field) {
	result, found, err := store.Lookup(c.Request.Context(), key)
	if err != nil {
		log.Error("idempotency lookup failed", append(fields, zap.Error(err))...)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUnavailable, "Request de-duplication is unavailable", requestID))
		return
	}
	if !found || result == "" {
		c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRequestInProgress, "A request with this Idempotency-Key is still being processed", requestID))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(result), &stored); err != nil {
		log.Error("idempotency result is corrupt", append(fields, zap.Error(err))...)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "Stored response could not be read", requestID))
		return
	}
	log.Info("idempotent request replayed", fields...)
	c.Header(IdempotentReplayHeader, "true")
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
	c.Abort()
}
