package routes

import (
	"errors"
	"net/http"

	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/query"

	"github.com/labstack/echo/v4"
)

// AskHandler answers a question from the scope's facts and the team graph.
func AskHandler(c echo.Context) error {
	type askBody struct {
		Question string `json:"question" validate:"required"`
	}

	scopeID, err := middleware.ParamID(c, "scope_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	res, err := ac.App.Services.Ask.Ask(c.Request().Context(), scopeID, ac.User.UserID, data.Question)
	switch {
	case errors.Is(err, query.ErrEmptyQuestion):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Question must not be empty"})
	case errors.Is(err, facts.ErrScopeNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Scope not found"})
	case err != nil:
		logger.Error("Ask failed", "scope_id", scopeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, res)
}
