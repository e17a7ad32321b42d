package http

import (
	"fmt"
	"net/http"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StatusFor maps the error taxonomy onto HTTP. Conflict has no status of its
// own and is reported as a bad request.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput, domain.ErrConflict:
		return http.StatusBadRequest
	case domain.ErrUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badBody(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func errMissing(field string) error {
	return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
}
