package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/timing"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/logger"
)

// LearnProcessor runs learn_queue jobs. Learning is best effort: every
// failure is logged and the message is dropped, never retried.
type LearnProcessor struct {
	learner *facts.Learner
	conn    db.DBTX
}

// NewLearnProcessor creates a processor. conn may be nil, in which case no
// timing stats are recorded.
func NewLearnProcessor(learner *facts.Learner, conn db.DBTX) *LearnProcessor {
	return &LearnProcessor{learner: learner, conn: conn}
}

// Process never returns an error so the consumer always acks.
func (p *LearnProcessor) Process(ctx context.Context, body []byte) error {
	var msg LearnMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Error("[Queue] Dropping malformed learn message", "err", err)
		return nil
	}
	if msg.ScopeID <= 0 || strings.TrimSpace(msg.Text) == "" {
		logger.Warn("[Queue] Dropping empty learn message", "scope_id", msg.ScopeID)
		return nil
	}

	start := time.Now()
	res, err := p.learner.Learn(ctx, msg.ScopeID, msg.UserID, msg.Text)
	if err != nil {
		logger.Error("[Queue] Background learning failed", "scope_id", msg.ScopeID, "err", err)
		return nil
	}
	duration := time.Since(start)

	if p.conn != nil {
		if err := timing.AddDocumentProcessingTime(ctx, 0, int64(len(msg.Text)), duration.Milliseconds(), timing.StatLearn, p.conn); err != nil {
			logger.Warn("[Queue] Failed to record learning time", "err", err)
		}
	}

	logger.Info(
		"[Queue] Learned facts",
		"scope_id", msg.ScopeID,
		"stored", res.Stored,
		"duplicates", res.Duplicates,
		"duration", duration,
	)
	return nil
}
