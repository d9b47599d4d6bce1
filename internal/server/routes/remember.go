package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/queue"
	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RememberPreviewHandler extracts facts from a statement and reports the
// existing facts they conflict with. Nothing is written until the preview
// is confirmed.
func RememberPreviewHandler(c echo.Context) error {
	type rememberBody struct {
		Statement string `json:"statement" validate:"required"`
	}

	scopeID, err := middleware.ParamID(c, "scope_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	data := new(rememberBody)
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

	preview, err := ac.App.Services.Remember.PreviewRemember(c.Request().Context(), scopeID, ac.User.UserID, data.Statement)
	switch {
	case errors.Is(err, facts.ErrEmptyStatement):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Statement must not be empty"})
	case errors.Is(err, facts.ErrScopeNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Scope not found"})
	case err != nil:
		logger.Error("Remember preview failed", "scope_id", scopeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, preview)
}

// ConfirmRememberHandler writes the facts of a preview. Existing facts
// listed in skip_ids are kept valid instead of being superseded.
func ConfirmRememberHandler(c echo.Context) error {
	type confirmBody struct {
		SkipIDs []int64 `json:"skip_ids"`
	}

	data := new(confirmBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ac := c.(*middleware.AppContext)
	previewID, status, msg := authorizePreview(c, ac)
	if status != 0 {
		return c.JSON(status, map[string]string{"error": msg})
	}

	res, err := ac.App.Services.Remember.ConfirmRemember(c.Request().Context(), previewID, data.SkipIDs)
	switch {
	case errors.Is(err, facts.ErrPreviewNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Preview not found or expired"})
	case err != nil:
		logger.Error("Remember confirm failed", "preview_id", previewID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, res)
}

// CancelRememberHandler drops a preview.
func CancelRememberHandler(c echo.Context) error {
	ac := c.(*middleware.AppContext)
	previewID, status, msg := authorizePreview(c, ac)
	if status != 0 {
		return c.JSON(status, map[string]string{"error": msg})
	}

	err := ac.App.Services.Remember.CancelRemember(c.Request().Context(), previewID)
	switch {
	case errors.Is(err, facts.ErrPreviewNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Preview not found or expired"})
	case err != nil:
		logger.Error("Remember cancel failed", "preview_id", previewID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Preview cancelled"})
}

// authorizePreview lets only the author of a preview, or an admin, act on
// it. A non-zero status is the response to send.
func authorizePreview(c echo.Context, ac *middleware.AppContext) (string, int, string) {
	previewID := strings.TrimSpace(c.Param("preview_id"))
	if previewID == "" {
		return "", http.StatusBadRequest, "Invalid request params"
	}
	if ac.User == nil {
		return "", http.StatusUnauthorized, "Unauthorized"
	}

	ctx := c.Request().Context()
	preview, err := ac.App.Services.Remember.GetPreview(ctx, previewID)
	if errors.Is(err, facts.ErrPreviewNotFound) {
		return "", http.StatusNotFound, "Preview not found or expired"
	}
	if err != nil {
		logger.Error("Failed to load preview", "preview_id", previewID, "err", err)
		return "", http.StatusInternalServerError, "Internal server error"
	}

	if middleware.IsAdmin(ac.User) {
		return previewID, 0, ""
	}
	if preview.UserID != ac.User.UserID {
		return "", http.StatusForbidden, "Preview belongs to another user"
	}
	ok, err := middleware.CanAccessTeam(ctx, db.New(ac.App.DBConn), ac.User, preview.TeamID)
	if err != nil {
		logger.Error("Failed to check team membership", "team_id", preview.TeamID, "err", err)
		return "", http.StatusInternalServerError, "Internal server error"
	}
	if !ok {
		return "", http.StatusForbidden, "You are not a member of this team"
	}
	return previewID, 0, ""
}

// LearnHandler queues text for background fact learning. Learned facts
// never replace existing ones.
func LearnHandler(c echo.Context) error {
	type learnBody struct {
		Text string `json:"text" validate:"required"`
	}

	scopeID, err := middleware.ParamID(c, "scope_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	data := new(learnBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil || strings.TrimSpace(data.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	err = queue.PublishJSON(ac.App.Queue, queue.LearnQueue, queue.LearnMsg{
		ScopeID: scopeID,
		UserID:  ac.User.UserID,
		Text:    data.Text,
	})
	if err != nil {
		logger.Error("Failed to queue learn job", "scope_id", scopeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"message": "Learning queued"})
}
