package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/remote"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// fail answers with the status matching the error kind.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	kind := remote.KindOf(err)
	status := remote.HTTPStatus(kind)
	if status >= 500 {
		l.Error(event, "status", status, "kind", kind.String(), "error", err)
	} else {
		l.Warn(event, "status", status, "kind", kind.String(), "error", err)
	}
	return c.JSON(status, errorBody{Error: remote.Message(err), Kind: kind.String()})
}

func badRequest(c echo.Context, l *slog.Logger, event, msg string) error {
	return fail(c, l, event, remote.Validation(msg))
}
