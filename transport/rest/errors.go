package rest

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/connect4-backend/internal/apperror"
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func statusOf(kind apperror.Kind) (int, string) {
	switch kind {
	case apperror.KindAuth:
		return http.StatusUnauthorized, "unauthenticated"
	case apperror.KindPrecondition:
		return http.StatusPreconditionFailed, "failed-precondition"
	case apperror.KindNotFound:
		return http.StatusNotFound, "not-found"
	case apperror.KindArgument:
		return http.StatusBadRequest, "invalid-argument"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError - business errors go out verbatim, everything else as a generic failure.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	kind := apperror.KindOf(err)
	status, code := statusOf(kind)

	message := "internal error"
	if cause := apperror.Cause(err); cause != nil && kind != apperror.KindTransient {
		message = cause.Error()
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		log.Debug("request rejected", "path", c.FullPath(), "kind", kind.String(), "error", err)
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Status: code, Message: message}})
}
