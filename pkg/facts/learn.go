package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"
)

// learnedConfidence is lower than for confirmed facts because nobody
// reviewed them.
const learnedConfidence = 0.8

// Learner stores facts picked up from ordinary scope messages without a
// confirmation step. Duplicates are dropped, everything else is added next
// to the facts it resembles; only a confirmed remember supersedes facts.
type Learner struct {
	facts     store.FactStorage
	aiClient  ai.GraphAIClient
	extractor *FactExtractor
	detector  Detector
}

func NewLearner(facts store.FactStorage, aiClient ai.GraphAIClient, model string, detector Detector) (*Learner, error) {
	if facts == nil || aiClient == nil {
		return nil, errors.New("learner requires fact storage and an ai client")
	}
	return &Learner{
		facts:     facts,
		aiClient:  aiClient,
		extractor: NewFactExtractor(aiClient, model),
		detector:  NewDetector(detector.DuplicateThreshold, detector.UpdateThreshold),
	}, nil
}

type LearnResult struct {
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
}

func (l *Learner) Learn(ctx context.Context, scopeID, userID int64, text string) (LearnResult, error) {
	var res LearnResult
	text = strings.TrimSpace(text)
	if text == "" {
		return res, nil
	}

	scope, err := loadScope(ctx, l.facts, scopeID)
	if err != nil {
		return res, err
	}

	for i, ef := range l.extractor.Extract(ctx, text) {
		emb := embedText(ctx, l.aiClient, ef.Content)
		conflicts, err := findConflicts(ctx, l.facts, l.detector, scope, i, ef.Content, emb)
		if err != nil {
			return res, err
		}
		if hasDuplicate(conflicts) {
			res.Duplicates++
			continue
		}

		fact := ef.ToFact(scope.TeamID, &scope.ID, userID)
		fact.SourceType = SourceTypeLearning
		fact.SourceQuote = &text
		fact.ConfidenceScore = learnedConfidence
		fact.Embedding = emb
		if _, err := l.facts.CreateFact(ctx, fact); err != nil {
			return res, fmt.Errorf("create learned fact: %w", err)
		}
		res.Stored++
	}

	logger.Debug("[Facts] Learned from message", "scope_id", scopeID, "stored", res.Stored, "duplicates", res.Duplicates)
	return res, nil
}

func hasDuplicate(conflicts []FactConflict) bool {
	for _, c := range conflicts {
		if c.Type == ConflictDuplicate {
			return true
		}
	}
	return false
}
