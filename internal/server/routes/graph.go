package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/query"
	"github.com/ravenloom/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

const (
	defaultNeighborLimit = 20
	maxNeighborLimit     = 100
)

// SearchGraphHandler runs a GraphRAG search over the team graph.
func SearchGraphHandler(c echo.Context) error {
	type searchGraphBody struct {
		Query    string `json:"query" validate:"required"`
		TopK     int    `json:"top_k" validate:"min=0,max=50"`
		HopDepth int    `json:"hop_depth" validate:"min=0,max=3"`
	}

	data := new(searchGraphBody)
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

	res, err := ac.App.Services.GraphRAG.Search(
		c.Request().Context(),
		middleware.TeamID(c),
		data.Query,
		query.SearchOptions{TopK: data.TopK, HopDepth: data.HopDepth},
	)
	if err != nil {
		logger.Error("Graph search failed", "team_id", middleware.TeamID(c), "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, res)
}

// GetNodeNeighborsHandler returns a node and the nodes directly connected
// to it.
func GetNodeNeighborsHandler(c echo.Context) error {
	type nodeNeighborsResponse struct {
		Node      common.Node   `json:"node"`
		Neighbors []common.Node `json:"neighbors"`
	}

	nodeID, err := middleware.ParamID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	limit := defaultNeighborLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
		}
		limit = min(n, maxNeighborLimit)
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	teamID := middleware.TeamID(c)
	graph := ac.App.Services.Graph

	node, err := graph.GetNode(ctx, teamID, nodeID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Node not found"})
	}
	if err != nil {
		logger.Error("Failed to load node", "node_id", nodeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	neighbors, err := graph.NeighborNodes(ctx, teamID, []int64{nodeID}, []int64{nodeID}, limit)
	if err != nil {
		logger.Error("Failed to load neighbors", "node_id", nodeID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if neighbors == nil {
		neighbors = []common.Node{}
	}

	return c.JSON(http.StatusOK, nodeNeighborsResponse{Node: node, Neighbors: neighbors})
}
