package timing

import (
	"context"
	"math"

	"github.com/ravenloom/backend/internal/db"
)

// Stat types recorded in process_stats.
const (
	StatIngest = "ingest"
	StatLearn  = "learn"
)

// AddDocumentProcessingTime records how long amount characters took to
// process. A documentID of 0 records the run without a document.
func AddDocumentProcessingTime(
	ctx context.Context,
	documentID, amount int64,
	durationMs int64,
	statType string,
	conn db.DBTX,
) error {
	q := db.New(conn)

	var docID *int64
	if documentID > 0 {
		docID = &documentID
	}
	return q.AddProcessTime(ctx, db.AddProcessTimeParams{
		DocumentID: docID,
		Amount:     int32(min(amount, math.MaxInt32)),
		Duration:   durationMs,
		StatType:   statType,
	})
}

// PredictProcessingTime estimates the duration in milliseconds for amount
// characters based on recent runs.
func PredictProcessingTime(ctx context.Context, amount int64, statType string, conn db.DBTX) (int64, error) {
	q := db.New(conn)

	return q.PredictProcessTime(ctx, db.PredictProcessTimeParams{
		Amount:   amount,
		StatType: statType,
	})
}
