package server

import (
	"errors"
	"io"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// -----------------------------------------------------------------------------

// requestID tags every request with an id, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func accessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.With("request_id", c.GetString(requestIDHeader)).Debug("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------

// bindSettingsUpdate decodes a partial settings body. Wrong JSON types are
// rejected; an empty body is an empty update.
func bindSettingsUpdate(c *gin.Context) (models.MQuoteSettingsUpdate, error) {
	var update models.MQuoteSettingsUpdate
	if c.Request.Body == nil {
		return update, nil
	}
	if err := c.ShouldBindJSON(&update); err != nil {
		if errors.Is(err, io.EOF) {
			return models.MQuoteSettingsUpdate{}, nil
		}
		return models.MQuoteSettingsUpdate{}, helpers.NewInvalidInput("invalid settings body: %v", err)
	}
	return update, nil
}

// -----------------------------------------------------------------------------

func isEmptyResult(err error) bool {
	return errors.Is(err, helpers.ErrTotalRefreshFailure)
}

// -----------------------------------------------------------------------------

func isInvalidInput(err error) bool {
	return errors.Is(err, helpers.ErrInvalidInput)
}
