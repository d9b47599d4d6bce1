package server

import (
	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	team := middleware.RequireTeamAccess(middleware.TeamFromParam("team_id"))
	scope := middleware.RequireTeamAccess(middleware.TeamFromScope("scope_id"))
	fact := middleware.RequireTeamAccess(middleware.TeamFromFact("id"))

	// Document routes
	apiRoutes.GET("/teams/:team_id/documents", routes.ListDocumentsHandler, middleware.RequirePermission(middleware.PermDocumentView), team)
	apiRoutes.POST("/teams/:team_id/documents", routes.UploadDocumentHandler, middleware.RequirePermission(middleware.PermDocumentCreate), team)
	apiRoutes.POST("/teams/:team_id/documents/text", routes.CreateTextDocumentHandler, middleware.RequirePermission(middleware.PermDocumentCreate), team)
	apiRoutes.POST("/teams/:team_id/documents/url", routes.CreateURLDocumentHandler, middleware.RequirePermission(middleware.PermDocumentCreate), team)

	// Graph routes
	apiRoutes.POST("/teams/:team_id/search", routes.SearchGraphHandler, middleware.RequirePermission(middleware.PermGraphSearch), team)
	apiRoutes.GET("/teams/:team_id/nodes/:id/neighbors", routes.GetNodeNeighborsHandler, middleware.RequirePermission(middleware.PermGraphSearch), team)

	// Fact routes
	apiRoutes.GET("/scopes/:scope_id/facts", routes.ListScopeFactsHandler, middleware.RequirePermission(middleware.PermFactView), scope)
	apiRoutes.DELETE("/facts/:id", routes.DeleteFactHandler, middleware.RequirePermission(middleware.PermFactDelete), fact)

	// Ask and remember routes
	apiRoutes.POST("/scopes/:scope_id/ask", routes.AskHandler, middleware.RequirePermission(middleware.PermAsk), scope)
	apiRoutes.POST("/scopes/:scope_id/remember", routes.RememberPreviewHandler, middleware.RequirePermission(middleware.PermRemember), scope)
	apiRoutes.POST("/scopes/:scope_id/learn", routes.LearnHandler, middleware.RequirePermission(middleware.PermLearn), scope)
	apiRoutes.POST("/remember/:preview_id/confirm", routes.ConfirmRememberHandler, middleware.RequirePermission(middleware.PermRemember))
	apiRoutes.DELETE("/remember/:preview_id", routes.CancelRememberHandler, middleware.RequirePermission(middleware.PermRemember))
}
