package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ravenloom/backend/pkg/common"

	"github.com/pashagolub/pgxmock/v4"
)

func TestRecoverStaleDocuments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("status = 'processing'").
		WithArgs(int64(600000)).
		WillReturnRows(pgxmock.NewRows(documentCols).
			AddRow(int64(5), int64(3), "a", common.DocumentSourceUpload, "k1.md", common.DocumentStatusProcessing, int64(9), testNow, testNow).
			AddRow(int64(6), int64(3), "b", common.DocumentSourceURL, "https://example.com", common.DocumentStatusProcessing, int64(9), testNow, testNow))
	mock.ExpectExec("UPDATE documents").
		WithArgs(int64(5), common.DocumentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs(int64(6), common.DocumentStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pub := &fakePublisher{}
	n, err := RecoverStaleDocuments(context.Background(), pub, mock, 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recovered, got %d", n)
	}
	if len(pub.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.sent))
	}
	var msg IngestMsg
	if err := json.Unmarshal(pub.sent[1].msg.Body, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if pub.sent[1].key != IngestQueue || msg.DocumentID != 6 || msg.TeamID != 3 {
		t.Fatalf("expected ingest message for document 6, got %s %+v", pub.sent[1].key, msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecoverStaleDocumentsNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("status = 'processing'").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(documentCols))

	pub := &fakePublisher{}
	n, err := RecoverStaleDocuments(context.Background(), pub, mock, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || len(pub.sent) != 0 {
		t.Fatalf("expected nothing recovered, got %d and %d messages", n, len(pub.sent))
	}
}
