package db

import (
	"context"
)

const addProcessTime = `-- name: AddProcessTime :exec
INSERT INTO process_stats (document_id, amount, duration, stat_type)
VALUES ($1, $2, $3, $4)
`

type AddProcessTimeParams struct {
	DocumentID *int64 `json:"document_id"`
	Amount     int32  `json:"amount"`
	Duration   int64  `json:"duration"`
	StatType   string `json:"stat_type"`
}

func (q *Queries) AddProcessTime(ctx context.Context, arg AddProcessTimeParams) error {
	_, err := q.db.Exec(ctx, addProcessTime,
		arg.DocumentID,
		arg.Amount,
		arg.Duration,
		arg.StatType,
	)
	return err
}

const predictProcessTime = `-- name: PredictProcessTime :one
SELECT COALESCE(
    CEIL(SUM(duration)::numeric / NULLIF(SUM(amount), 0) * $1::bigint),
    0
)::bigint AS prediction
FROM (
    SELECT duration, amount
    FROM process_stats
    WHERE stat_type = $2
    ORDER BY created_at DESC
    LIMIT 50
) recent
`

type PredictProcessTimeParams struct {
	Amount   int64  `json:"amount"`
	StatType string `json:"stat_type"`
}

// PredictProcessTime extrapolates the average duration per unit of the
// last 50 runs of the same stat type. It returns 0 without history.
func (q *Queries) PredictProcessTime(ctx context.Context, arg PredictProcessTimeParams) (int64, error) {
	row := q.db.QueryRow(ctx, predictProcessTime, arg.Amount, arg.StatType)
	var prediction int64
	err := row.Scan(&prediction)
	return prediction, err
}
