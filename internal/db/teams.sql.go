package db

import (
	"context"
)

const getTeamMemberRole = `-- name: GetTeamMemberRole :one
SELECT role
FROM team_members
WHERE team_id = $1 AND user_id = $2
`

type GetTeamMemberRoleParams struct {
	TeamID int64 `json:"team_id"`
	UserID int64 `json:"user_id"`
}

func (q *Queries) GetTeamMemberRole(ctx context.Context, arg GetTeamMemberRoleParams) (string, error) {
	row := q.db.QueryRow(ctx, getTeamMemberRole, arg.TeamID, arg.UserID)
	var role string
	err := row.Scan(&role)
	return role, err
}

const getScopeTeam = `-- name: GetScopeTeam :one
SELECT team_id
FROM scopes
WHERE id = $1
`

func (q *Queries) GetScopeTeam(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRow(ctx, getScopeTeam, id)
	var teamID int64
	err := row.Scan(&teamID)
	return teamID, err
}

const getFactTeam = `-- name: GetFactTeam :one
SELECT team_id
FROM facts
WHERE id = $1
`

func (q *Queries) GetFactTeam(ctx context.Context, id int64) (int64, error) {
	row := q.db.QueryRow(ctx, getFactTeam, id)
	var teamID int64
	err := row.Scan(&teamID)
	return teamID, err
}
