package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waveconv/entity"
)

const (
	msgUnauthorized    = "authentication required"
	msgForbidden       = "not allowed"
	msgInvalidInput    = "invalid or corrupted media file"
	msgEngineDown      = "conversion service is temporarily unavailable"
	msgEncodingFailed  = "failed to convert the file"
	msgStorage         = "could not save the file"
	msgInternal        = "internal server error"
	msgFileNotFound    = "file not found"
	msgRetrieveFailure = "could not retrieve file"
)

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error" example:"message"`
	Details string `json:"details,omitempty"`
}

func errorResponse(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, response{Error: msg})
}

// convertErrorResponse maps a Convert failure to a status and a user-safe
// message. Raw diagnostics are added only in development.
func convertErrorResponse(c *gin.Context, err error, development bool) {
	code, msg, details := mapConvertError(err)

	resp := response{Error: msg}
	if development && code == http.StatusInternalServerError {
		resp.Details = details
	}
	c.AbortWithStatusJSON(code, resp)
}

func mapConvertError(err error) (int, string, string) {
	var (
		ve *entity.ValidationError
		te *entity.TranscodeError
		se *entity.StorageError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message, ""
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized, ""
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden, msgForbidden, ""
	case errors.As(err, &te):
		switch te.Kind {
		case entity.InvalidInputFormat:
			return http.StatusInternalServerError, msgInvalidInput, te.Reason
		case entity.EngineUnavailable:
			return http.StatusInternalServerError, msgEngineDown, te.Reason
		default:
			return http.StatusInternalServerError, msgEncodingFailed, te.Reason
		}
	case errors.As(err, &se):
		return http.StatusInternalServerError, msgStorage, se.Error()
	default:
		return http.StatusInternalServerError, msgInternal, err.Error()
	}
}
