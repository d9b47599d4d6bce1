package pgx

import (
	"context"

	"github.com/ravenloom/backend/pkg/common"
)

const getScopeSQL = `
SELECT id, team_id, name
FROM scopes
WHERE id = $1`

func (s *GraphDBStorage) GetScope(ctx context.Context, scopeID int64) (common.Scope, error) {
	var sc common.Scope
	err := s.conn.QueryRow(ctx, getScopeSQL, scopeID).Scan(&sc.ID, &sc.TeamID, &sc.Name)
	if err != nil {
		return common.Scope{}, notFound(err)
	}
	return sc, nil
}
