package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/pkg/helpers"
	"github.com/oksasatya/go-expense-split/pkg/response"
)

const (
	CtxUserIDKey   = "userID"
	ctxAuthUserKey = "authUser"
)

// Authenticator resolves request credentials to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, cred application.Credentials) (*application.AuthenticatedUser, error)
}

// Auth accepts either an "Authorization: Bearer <token>" header or the session
// cookie. A present but malformed or invalid header is rejected without
// looking at the cookie. On success it sets userID and the authenticated user
// in the Gin context.
func Auth(auth Authenticator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cred application.Credentials
		if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
			scheme, token, ok := strings.Cut(h, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				response.Error[any](c, http.StatusUnauthorized, "invalid authorization header", nil)
				return
			}
			cred.BearerToken = token
		} else if sid, err := c.Cookie(helpers.SessionCookieName); err == nil {
			cred.SessionID = sid
		}

		u, err := auth.Authenticate(c.Request.Context(), cred)
		if err != nil {
			if errors.Is(err, application.ErrUnauthenticated) {
				response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
				return
			}
			if logger != nil {
				logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("authentication failed")
			}
			response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
			return
		}

		c.Set(CtxUserIDKey, strconv.FormatInt(u.ID, 10))
		c.Set(ctxAuthUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the user set by Auth, or nil on unauthenticated routes.
func CurrentUser(c *gin.Context) *application.AuthenticatedUser {
	v, ok := c.Get(ctxAuthUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*application.AuthenticatedUser)
	return u
}
