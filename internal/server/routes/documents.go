package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ravenloom/backend/internal/db"
	"github.com/ravenloom/backend/internal/queue"
	"github.com/ravenloom/backend/internal/server/middleware"
	serverutil "github.com/ravenloom/backend/internal/server/util"
	"github.com/ravenloom/backend/internal/storage"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/loader"
	"github.com/ravenloom/backend/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type documentResponse struct {
	Message  string           `json:"message"`
	Document *common.Document `json:"document,omitempty"`
}

func documentPath(teamID int64) string {
	return fmt.Sprintf("teams/%d/documents", teamID)
}

// UploadDocumentHandler stores an uploaded text, markdown or docx file and
// queues it for ingestion.
func UploadDocumentHandler(c echo.Context) error {
	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if _, err := loader.KindFromName(file.Filename); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported file type"})
	}
	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	defer src.Close()

	return storeAndQueue(c, title, file.Filename, common.DocumentSourceUpload, src)
}

// CreateTextDocumentHandler stores inline text as a document.
func CreateTextDocumentHandler(c echo.Context) error {
	type createTextDocumentBody struct {
		Title string `json:"title" validate:"required,max=512"`
		Text  string `json:"text" validate:"required"`
	}

	data := new(createTextDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if c.(*middleware.AppContext).User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	return storeAndQueue(c, data.Title, "document.txt", common.DocumentSourceText, strings.NewReader(data.Text))
}

// CreateURLDocumentHandler registers a web page. The page is fetched by the
// worker.
func CreateURLDocumentHandler(c echo.Context) error {
	type createURLDocumentBody struct {
		URL   string `json:"url" validate:"required,url"`
		Title string `json:"title" validate:"max=512"`
	}

	data := new(createURLDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if !strings.HasPrefix(data.URL, "http://") && !strings.HasPrefix(data.URL, "https://") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only http and https urls are supported"})
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	title := strings.TrimSpace(data.Title)
	if title == "" {
		title = data.URL
	}

	ctx := c.Request().Context()
	doc, err := createAndQueue(ctx, ac, db.CreateDocumentParams{
		TeamID:     middleware.TeamID(c),
		Title:      title,
		SourceType: common.DocumentSourceURL,
		Location:   data.URL,
		CreatedBy:  ac.User.UserID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, documentResponse{
		Message:  "Document queued for ingestion",
		Document: &doc,
	})
}

// ListDocumentsHandler lists the documents of a team with their ingestion
// status.
func ListDocumentsHandler(c echo.Context) error {
	type listDocumentsResponse struct {
		Status    string                          `json:"status"`
		Counts    serverutil.DocumentStatusCounts `json:"counts"`
		Documents []common.Document               `json:"documents"`
	}

	ac := c.(*middleware.AppContext)
	if ac.User == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	q := db.New(ac.App.DBConn)
	docs, err := q.ListTeamDocuments(ctx, middleware.TeamID(c))
	if err != nil {
		logger.Error("Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	counts := serverutil.CountDocumentStatus(docs)
	return c.JSON(http.StatusOK, listDocumentsResponse{
		Status:    serverutil.TeamIngestStatus(counts),
		Counts:    counts,
		Documents: docs,
	})
}

func storeAndQueue(c echo.Context, title, name, sourceType string, body io.ReadSeeker) error {
	ac := c.(*middleware.AppContext)
	ctx := c.Request().Context()
	teamID := middleware.TeamID(c)

	fID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	key, err := storage.PutFile(ctx, ac.App.S3, documentPath(teamID), name, fID, body)
	if err != nil {
		logger.Error("Failed to upload document", "team_id", teamID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	doc, err := createAndQueue(ctx, ac, db.CreateDocumentParams{
		TeamID:     teamID,
		Title:      title,
		SourceType: sourceType,
		Location:   key,
		CreatedBy:  ac.User.UserID,
	})
	if err != nil {
		if errors.Is(err, errNotStored) {
			if delErr := storage.DeleteFile(ctx, ac.App.S3, key); delErr != nil {
				logger.Error("Failed to delete orphaned object", "key", key, "err", delErr)
			}
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, documentResponse{
		Message:  "Document queued for ingestion",
		Document: &doc,
	})
}

const publishAttempts = 3

var errNotStored = errors.New("document row not created")

// createAndQueue inserts the document row and publishes the ingest job. A
// document whose job cannot be published is marked failed.
func createAndQueue(ctx context.Context, ac *middleware.AppContext, params db.CreateDocumentParams) (common.Document, error) {
	q := db.New(ac.App.DBConn)
	doc, err := q.CreateDocument(ctx, params)
	if err != nil {
		logger.Error("Failed to create document", "team_id", params.TeamID, "err", err)
		return common.Document{}, fmt.Errorf("%w: %w", errNotStored, err)
	}

	err = util.RetryErrWithContext(ctx, publishAttempts, func(ctx context.Context) error {
		return queue.PublishJSON(ac.App.Queue, queue.IngestQueue, queue.IngestMsg{
			Message:    "Document created",
			DocumentID: doc.ID,
			TeamID:     doc.TeamID,
		})
	})
	if err != nil {
		logger.Error("Failed to queue document", "document_id", doc.ID, "err", err)
		if statusErr := q.UpdateDocumentStatus(ctx, db.UpdateDocumentStatusParams{
			ID:     doc.ID,
			Status: common.DocumentStatusFailed,
		}); statusErr != nil {
			logger.Error("Failed to mark document failed", "document_id", doc.ID, "err", statusErr)
		}
		return common.Document{}, err
	}

	logger.Info("Document queued", "document_id", doc.ID, "team_id", doc.TeamID, "source_type", doc.SourceType)
	return doc, nil
}
