package routes

import (
	"errors"
	"net/http"

	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// ListScopeFactsHandler lists the facts of a scope. Invalidated facts are
// included with ?include_invalid=true.
func ListScopeFactsHandler(c echo.Context) error {
	scopeID, err := middleware.ParamID(c, "scope_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	includeInvalid := c.QueryParam("include_invalid") == "true"
	res, err := ac.App.Services.Facts.ListFacts(c.Request().Context(), middleware.TeamID(c), &scopeID, includeInvalid)
	if err != nil {
		logger.Error("Failed to list facts", "scope_id", scopeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if res == nil {
		res = []common.Fact{}
	}

	return c.JSON(http.StatusOK, res)
}

// DeleteFactHandler forgets a fact. The row stays for history with its
// validity closed.
func DeleteFactHandler(c echo.Context) error {
	factID, err := middleware.ParamID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	err = ac.App.Services.Facts.InvalidateFact(c.Request().Context(), factID, nil)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Fact not found or already invalid"})
	}
	if err != nil {
		logger.Error("Failed to invalidate fact", "fact_id", factID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	logger.Info("Fact forgotten", "fact_id", factID, "user_id", ac.User.UserID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Fact deleted successfully"})
}
