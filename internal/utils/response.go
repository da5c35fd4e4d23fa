package utils

import (
	"context"       // Request id propagation
	"encoding/json" // Payload flattening
	"net/http"      // HTTP status codes

	"bank_system/internal/domain" // Error kinds

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// StatusFor maps an error kind to the HTTP status of its outcome
func StatusFor(e *domain.Error) int {
	switch e.Kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindInvalidAmount, domain.KindSelfTransferDenied:
		return http.StatusBadRequest
	case domain.KindRecipientNotFound, domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	}
	if e.Retryable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Respond writes an outcome object: {"success", "message", "error_kind"?, ...payload}.
// payload must encode to a JSON object; its fields are merged into the outcome.
// The internal cause of an error is logged and never written.
func Respond(c *gin.Context, message string, payload any, err error) {
	if err != nil {
		RespondError(c, err)
		return
	}
	body := gin.H{}
	if payload != nil {
		raw, mErr := json.Marshal(payload)
		fields := map[string]json.RawMessage{}
		if mErr == nil {
			mErr = json.Unmarshal(raw, &fields)
		}
		if mErr != nil {
			RespondError(c, domain.StoreFailure(mErr, false))
			return
		}
		for k, v := range fields {
			body[k] = v
		}
	}
	body["success"] = true
	body["message"] = message
	c.JSON(http.StatusOK, body)
}

// RespondError writes the failure outcome of err
func RespondError(c *gin.Context, err error) {
	de := domain.AsError(err)
	if de.Err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"path":       c.FullPath(),
			"kind":       de.Kind,
			"error":      de.Err.Error(),
		}).Error("Request failed")
	}
	body := gin.H{
		"success":    false,
		"message":    de.Message,
		"error_kind": de.Kind,
	}
	if de.TransferID != "" {
		body["transfer_id"] = de.TransferID
	}
	if !de.Timestamp.IsZero() {
		body["timestamp"] = de.Timestamp
	}
	if de.Balance != nil {
		body["balance"] = *de.Balance
	}
	if de.Retryable {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(StatusFor(de), body)
}

// RequestIDKey is the gin context key and HTTP header carrying the request id
const (
	RequestIDKey    = "requestID"
	RequestIDHeader = "X-Request-ID"
)

type requestIDCtxKey struct{}

// WithRequestID returns ctx carrying id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestID returns the request id carried by ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
