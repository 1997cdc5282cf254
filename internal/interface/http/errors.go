package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/pkg/response"
	"github.com/oksasatya/go-expense-split/pkg/validation"
)

var errorStatuses = []struct {
	kind   error
	status int
}{
	{application.ErrInvalidInput, http.StatusBadRequest},
	{application.ErrInvalidState, http.StatusBadRequest},
	{application.ErrSplitFailed, http.StatusBadRequest},
	{application.ErrCodeMismatch, http.StatusBadRequest},
	{application.ErrCodeExpired, http.StatusBadRequest},
	{application.ErrUnauthenticated, http.StatusUnauthorized},
	{application.ErrUnauthorized, http.StatusUnauthorized},
	{application.ErrForbidden, http.StatusForbidden},
	{application.ErrNotFound, http.StatusNotFound},
	{application.ErrConflict, http.StatusConflict},
}

// StatusOf maps an application error kind to its HTTP status.
func StatusOf(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.kind) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err as an error envelope. Unclassified errors are logged
// and reported with an opaque message.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"path":       c.FullPath(),
			}).Error("request failed")
		}
		response.Error[any](c, status, "internal server error", nil)
		return
	}

	var appErr *application.Error
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		response.Error[any](c, status, appErr.Message, appErr.Fields)
		return
	}
	response.Error[any](c, status, err.Error(), nil)
}

func badPayload(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}
