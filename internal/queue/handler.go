package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
)

// RecoverStaleDocuments requeues documents left in processing by a worker
// that died. A document counts as stale once it has not been touched for
// staleAfter, which must exceed the ingest lease TTL.
func RecoverStaleDocuments(
	ctx context.Context,
	ch Publisher,
	conn db.DBTX,
	staleAfter time.Duration,
) (int, error) {
	q := db.New(conn)

	staleDocs, err := q.ListStaleDocuments(ctx, staleAfter.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to get stale documents: %w", err)
	}

	if len(staleDocs) == 0 {
		logger.Debug("[Queue] No stale documents found")
		return 0, nil
	}

	logger.Info("[Queue] Found stale documents", "count", len(staleDocs))

	recovered := 0
	for _, doc := range staleDocs {
		err := q.UpdateDocumentStatus(ctx, db.UpdateDocumentStatusParams{
			ID:     doc.ID,
			Status: common.DocumentStatusPending,
		})
		if err != nil {
			logger.Error("[Queue] Failed to reset document status", "document_id", doc.ID, "err", err)
			continue
		}

		err = PublishJSON(ch, IngestQueue, IngestMsg{
			Message:    "Recovered stale document",
			DocumentID: doc.ID,
			TeamID:     doc.TeamID,
		})
		if err != nil {
			logger.Error("[Queue] Failed to republish document", "document_id", doc.ID, "err", err)
			continue
		}

		recovered++
		logger.Info("[Queue] Recovered stale document", "document_id", doc.ID, "team_id", doc.TeamID)
	}

	return recovered, nil
}
