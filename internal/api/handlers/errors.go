package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
)

// Error codes returned in the "error" field.
const (
	CodeMalformedRecord   = "MALFORMED_RECORD"
	CodeNotFound          = "NOT_FOUND"
	CodeReadOnly          = "READ_ONLY_SOURCE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternal          = "INTERNAL"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Row     int               `json:"row,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// respondError maps domain and policy errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var malformed *domain.MalformedRecordError
	if errors.As(err, &malformed) {
		c.JSON(http.StatusBadRequest, errorBody{
			Error:   CodeMalformedRecord,
			Message: malformed.Error(),
			Row:     malformed.Row,
			Details: malformed.Fields,
		})
		return
	}

	switch kind := policy.KindOf(err); kind {
	case policy.KindDataInsufficient:
		c.JSON(http.StatusNotFound, errorBody{Error: string(kind), Message: err.Error()})
		return
	case policy.KindInvalidParameters:
		c.JSON(http.StatusBadRequest, errorBody{Error: string(kind), Message: err.Error()})
		return
	case policy.KindDegenerateConsumption, policy.KindRunwayUndefined:
		c.JSON(http.StatusUnprocessableEntity, errorBody{Error: string(kind), Message: err.Error()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: CodeNotFound, Message: err.Error()})
	case errors.Is(err, domain.ErrReadOnlySource), errors.Is(err, service.ErrNotReloadable):
		c.JSON(http.StatusMethodNotAllowed, errorBody{Error: CodeReadOnly, Message: err.Error()})
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, errorBody{Error: CodeUnsupportedFormat, Message: err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: CodeInternal, Message: "internal server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: CodeBadRequest, Message: message})
}
