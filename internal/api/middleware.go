package api

import (
	"net/http"
	"time"

	"github.com/ddanshin/task-manager/internal/auth"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const identityContextKey = "identity"

// HeaderXUser is a legacy client header. It is never trusted as identity; when
// present it must agree with the verified token subject.
const HeaderXUser = "X-User"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware verifies the Authorization token and stores the verified
// subject on the echo context. Identity is derived from the token signature
// only; headers never override it.
func AuthMiddleware(verifier *auth.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(echo.HeaderAuthorization)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Token is missing"})
			}

			subject, err := verifier.Verify(raw)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Token has expired"})
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Token is invalid"})
			}

			if claimed := c.Request().Header.Get(HeaderXUser); claimed != "" && claimed != subject {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Token is invalid"})
			}

			c.Set(identityContextKey, subject)

			return next(c)
		}
	}
}

// Identity returns the verified token subject set by AuthMiddleware.
func Identity(c echo.Context) string {
	if s, ok := c.Get(identityContextKey).(string); ok {
		return s
	}
	return ""
}
