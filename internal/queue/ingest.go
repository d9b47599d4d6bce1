package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/timing"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/graph"
	"github.com/ravenloom/backend/pkg/leaselock"
	"github.com/ravenloom/backend/pkg/loader"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"

	"github.com/jackc/pgx/v5"
)

const (
	defaultLeaseTTL = 5 * time.Minute
	loadAttempts    = 3
	// SourceTypeDocument marks graph rows that came from an ingested document.
	SourceTypeDocument = "document"
)

// Ingester runs ingest_queue jobs: it loads a document, feeds it through
// the graph pipeline and keeps the document status current. One document
// is processed by at most one worker at a time.
type Ingester struct {
	conn     db.DBTX
	locks    *leaselock.Client
	graph    *graph.GraphClient
	store    store.GraphStorage
	sources  SourceResolver
	leaseTTL time.Duration
}

// NewIngesterParams configures an Ingester. Conn is used for the document
// rows, the leases and the timing stats. LeaseTTL defaults to five minutes.
type NewIngesterParams struct {
	Conn     db.DBTX
	Graph    *graph.GraphClient
	Store    store.GraphStorage
	Sources  SourceResolver
	LeaseTTL time.Duration
}

func NewIngester(params NewIngesterParams) (*Ingester, error) {
	if params.Conn == nil || params.Graph == nil || params.Store == nil || params.Sources == nil {
		return nil, errors.New("ingester requires a connection, a graph client, a store and sources")
	}
	ttl := params.LeaseTTL
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &Ingester{
		conn:     params.Conn,
		locks:    leaselock.New(params.Conn),
		graph:    params.Graph,
		store:    params.Store,
		sources:  params.Sources,
		leaseTTL: ttl,
	}, nil
}

// Process handles one ingest_queue message body. A returned error sends the
// message to the retry queue. Messages that can never succeed are logged
// and dropped.
func (i *Ingester) Process(ctx context.Context, body []byte) error {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Error("[Queue] Dropping malformed ingest message", "err", err)
		return nil
	}
	if msg.DocumentID <= 0 {
		logger.Error("[Queue] Dropping ingest message without document", "team_id", msg.TeamID)
		return nil
	}

	key := leaselock.DocumentKey(msg.TeamID, msg.DocumentID)
	err := i.locks.WithLease(ctx, key, leaselock.Options{TTL: i.leaseTTL, TokenPrefix: "ingest-"}, func(ctx context.Context) error {
		return i.ingest(ctx, msg)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Document is already being ingested", "document_id", msg.DocumentID)
		return nil
	}
	return err
}

func (i *Ingester) ingest(ctx context.Context, msg IngestMsg) (err error) {
	q := db.New(i.conn)

	doc, err := q.GetDocument(ctx, msg.DocumentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("[Queue] Document no longer exists", "document_id", msg.DocumentID)
			return nil
		}
		return fmt.Errorf("failed to load document %d: %w", msg.DocumentID, err)
	}
	if doc.TeamID != msg.TeamID {
		logger.Error("[Queue] Ingest message team does not match document", "document_id", doc.ID, "team_id", msg.TeamID, "document_team_id", doc.TeamID)
		return nil
	}
	if doc.Status == common.DocumentStatusProcessed {
		logger.Info("[Queue] Document already processed", "document_id", doc.ID)
		return nil
	}

	if err := q.UpdateDocumentStatus(ctx, db.UpdateDocumentStatusParams{ID: doc.ID, Status: common.DocumentStatusProcessing}); err != nil {
		return fmt.Errorf("failed to mark document as processing: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		markFailed(q, doc.ID, err)
		if util.IsPermanent(err) {
			err = nil
		}
	}()

	src, err := i.sources.Resolve(doc)
	if err != nil {
		return util.Permanent(err)
	}
	text, err := util.RetryWithContext(ctx, loadAttempts, func(ctx context.Context) (string, error) {
		text, err := src.GetText(ctx)
		if errors.Is(err, loader.ErrUnsupported) {
			return "", util.Permanent(err)
		}
		return text, err
	})
	if err != nil {
		return fmt.Errorf("failed to load document text: %w", err)
	}

	amount := int64(len(text))
	prediction, predErr := timing.PredictProcessingTime(ctx, amount, timing.StatIngest, i.conn)
	if predErr != nil {
		prediction = 0
	}
	logger.Info("[Queue] Prediction for ingestion", "document_id", doc.ID, "chars", amount, "time_ms", prediction)

	id := strconv.FormatInt(doc.ID, 10)
	// A retried or recovered document may have saved chunks before failing.
	cleared, err := q.DeleteSourceChunks(ctx, db.DeleteSourceChunksParams{TeamID: doc.TeamID, SourceType: SourceTypeDocument, SourceID: id})
	if err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}
	if cleared > 0 {
		logger.Info("[Queue] Cleared chunks of an earlier run", "document_id", doc.ID, "chunks", cleared)
	}

	start := time.Now()
	res := graph.ProcessResult{}
	if strings.TrimSpace(text) != "" {
		res, err = i.graph.ProcessDocument(
			ctx,
			doc.TeamID,
			graph.Document{ID: id, Title: doc.Title, Content: text},
			common.SourceInfo{SourceType: SourceTypeDocument, SourceID: &id},
			i.store,
		)
		if err != nil {
			return fmt.Errorf("failed to process document: %w", err)
		}
	}
	duration := time.Since(start)

	if err := q.UpdateDocumentStatus(ctx, db.UpdateDocumentStatusParams{ID: doc.ID, Status: common.DocumentStatusProcessed}); err != nil {
		return fmt.Errorf("failed to mark document as processed: %w", err)
	}
	if err := timing.AddDocumentProcessingTime(ctx, doc.ID, amount, duration.Milliseconds(), timing.StatIngest, i.conn); err != nil {
		logger.Warn("[Queue] Failed to record processing time", "document_id", doc.ID, "err", err)
	}

	logger.Info(
		"[Queue] Document ingested",
		"document_id", doc.ID,
		"team_id", doc.TeamID,
		"nodes", res.Nodes,
		"edges", res.Edges,
		"chunks", res.Chunks,
		"duration", duration,
	)
	return nil
}

func markFailed(q *db.Queries, documentID int64, cause error) {
	updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.UpdateDocumentStatus(updateCtx, db.UpdateDocumentStatusParams{ID: documentID, Status: common.DocumentStatusFailed}); err != nil {
		logger.Warn("[Queue] Failed to mark document as failed", "document_id", documentID, "cause", cause, "err", err)
		return
	}
	logger.Warn("[Queue] Document ingestion failed", "document_id", documentID, "err", cause)
}
