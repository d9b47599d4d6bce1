package util

import "github.com/ravenloom/backend/pkg/common"

const StatusNoDocuments = "no_documents"

// DocumentStatusCounts counts documents per status.
type DocumentStatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
}

func CountDocumentStatus(docs []common.Document) DocumentStatusCounts {
	var counts DocumentStatusCounts
	for _, d := range docs {
		switch d.Status {
		case common.DocumentStatusPending:
			counts.Pending++
		case common.DocumentStatusProcessing:
			counts.Processing++
		case common.DocumentStatusProcessed:
			counts.Processed++
		case common.DocumentStatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// TeamIngestStatus folds the document counts into one status. Work that is
// still queued or running wins over failures.
func TeamIngestStatus(counts DocumentStatusCounts) string {
	switch {
	case counts.Pending+counts.Processing+counts.Processed+counts.Failed == 0:
		return StatusNoDocuments
	case counts.Pending > 0 || counts.Processing > 0:
		return common.DocumentStatusProcessing
	case counts.Failed > 0:
		return common.DocumentStatusFailed
	default:
		return common.DocumentStatusProcessed
	}
}
