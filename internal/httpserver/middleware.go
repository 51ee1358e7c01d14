package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/session"
)

const (
	CtxRole     = "role"
	CtxUsername = "username"
)

func Common(base *slog.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		RequestLogger(base),
		ecM.Secure(),
	}
}

// RequestLogger puts a request-scoped logger into the request context and
// logs one line per request at a level chosen by the final status.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With(
				"method", c.Request().Method,
				"path", c.Path(),
				"url", c.Request().URL.Path,
				"remote_ip", c.RealIP(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
			}
			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

			start := time.Now()
			err := next(c)
			dur := time.Since(start)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status

			switch {
			case status >= 500:
				l.Error("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errStr(err))
			case status >= 400:
				l.Warn("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errStr(err))
			default:
				l.Info("request completed", "status", status, "duration_ms", dur.Milliseconds(), "bytes", c.Response().Size)
			}
			return nil
		}
	}
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}

// RequireAdmin lets the request through only when the stored session token
// carries the admin role. Opaque tokens carry no role and are refused.
func RequireAdmin(tokens reconcile.TokenReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := tokens.ReadToken(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
			}
			claims, err := session.Inspect(token)
			if err != nil || claims.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !claims.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			c.Set(CtxRole, claims.Role)
			c.Set(CtxUsername, claims.Username)
			return next(c)
		}
	}
}
