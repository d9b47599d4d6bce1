package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

const teamIDKey = "team_id"

var errInvalidParam = errors.New("invalid path parameter")

// TeamResolver finds the team a request operates on. pgx.ErrNoRows means
// the referenced row does not exist.
type TeamResolver func(c echo.Context, q *db.Queries) (int64, error)

// TeamFromParam reads the team id straight from a path parameter.
func TeamFromParam(name string) TeamResolver {
	return func(c echo.Context, q *db.Queries) (int64, error) {
		return ParamID(c, name)
	}
}

// TeamFromScope resolves the team owning the scope in a path parameter.
func TeamFromScope(name string) TeamResolver {
	return func(c echo.Context, q *db.Queries) (int64, error) {
		id, err := ParamID(c, name)
		if err != nil {
			return 0, err
		}
		return q.GetScopeTeam(c.Request().Context(), id)
	}
}

// TeamFromFact resolves the team owning the fact in a path parameter.
func TeamFromFact(name string) TeamResolver {
	return func(c echo.Context, q *db.Queries) (int64, error) {
		id, err := ParamID(c, name)
		if err != nil {
			return 0, err
		}
		return q.GetFactTeam(c.Request().Context(), id)
	}
}

// ParamID parses a positive int64 path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidParam
	}
	return id, nil
}

// CanAccessTeam reports whether user is a member of teamID. Admins can
// access every team.
func CanAccessTeam(ctx context.Context, q *db.Queries, user *AppUser, teamID int64) (bool, error) {
	if user == nil {
		return false, nil
	}
	if IsAdmin(user) {
		return true, nil
	}
	_, err := q.GetTeamMemberRole(ctx, db.GetTeamMemberRoleParams{
		TeamID: teamID,
		UserID: user.UserID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RequireTeamAccess resolves the team of the request and rejects users that
// are not a member of it. Handlers read the resolved id with TeamID.
func RequireTeamAccess(resolve TeamResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac := c.(*AppContext)
			if ac.User == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			ctx := c.Request().Context()
			q := db.New(ac.App.DBConn)

			teamID, err := resolve(c, q)
			switch {
			case errors.Is(err, errInvalidParam):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
			case errors.Is(err, pgx.ErrNoRows):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
			case err != nil:
				logger.Error("Failed to resolve team", "err", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			}

			ok, err := CanAccessTeam(ctx, q, ac.User, teamID)
			if err != nil {
				logger.Error("Failed to check team membership", "team_id", teamID, "err", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			}
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "You are not a member of this team"})
			}

			SetTeamID(c, teamID)
			return next(c)
		}
	}
}

// SetTeamID stores the team a request operates on.
func SetTeamID(c echo.Context, teamID int64) {
	c.Set(teamIDKey, teamID)
}

// TeamID returns the team resolved by RequireTeamAccess.
func TeamID(c echo.Context) int64 {
	id, _ := c.Get(teamIDKey).(int64)
	return id
}
