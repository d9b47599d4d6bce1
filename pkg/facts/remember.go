package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	SourceTypeUser     = "user"
	SourceTypeLearning = "learning"

	similarFactLimit = 5
)

var (
	ErrScopeNotFound   = errors.New("scope not found")
	ErrPreviewNotFound = errors.New("Preview not found or expired")
	ErrEmptyStatement  = errors.New("statement must not be empty")
)

// RememberService records team knowledge in two steps: PreviewRemember
// extracts atomic facts and the existing facts they conflict with,
// ConfirmRemember writes them.
//
// A RememberService should be created using NewRememberService.
type RememberService struct {
	facts     store.FactStorage
	aiClient  ai.GraphAIClient
	extractor *FactExtractor
	detector  Detector
	previews  PreviewStore
	now       func() time.Time
}

// NewRememberServiceParams configures a RememberService. A zero Detector
// uses the default thresholds and a nil Previews store keeps previews in
// process for DefaultPreviewTTL.
type NewRememberServiceParams struct {
	Facts    store.FactStorage
	AIClient ai.GraphAIClient
	Model    string
	Detector Detector
	Previews PreviewStore
}

func NewRememberService(params NewRememberServiceParams) (*RememberService, error) {
	if params.Facts == nil || params.AIClient == nil {
		return nil, errors.New("remember service requires fact storage and an ai client")
	}
	previews := params.Previews
	if previews == nil {
		previews = NewTTLPreviewStore(DefaultPreviewTTL)
	}
	return &RememberService{
		facts:     params.Facts,
		aiClient:  params.AIClient,
		extractor: NewFactExtractor(params.AIClient, params.Model),
		detector:  NewDetector(params.Detector.DuplicateThreshold, params.Detector.UpdateThreshold),
		previews:  previews,
		now:       time.Now,
	}, nil
}

// PreviewRemember prepares a remember request. Statements that look like
// questions are flagged but still analysed.
func (s *RememberService) PreviewRemember(ctx context.Context, scopeID, userID int64, statement string) (Preview, error) {
	s.previews.PurgeExpired(ctx)

	statement = strings.TrimSpace(statement)
	if statement == "" {
		return Preview{}, ErrEmptyStatement
	}

	scope, err := loadScope(ctx, s.facts, scopeID)
	if err != nil {
		return Preview{}, err
	}

	p := Preview{
		ScopeID:    scope.ID,
		TeamID:     scope.TeamID,
		UserID:     userID,
		SourceText: statement,
		Conflicts:  []FactConflict{},
		CreatedAt:  s.now(),
	}
	if IsLikelyQuestion(statement) {
		p.IsMismatch = true
		p.MismatchSuggestion = mismatchSuggestion(statement)
	}

	p.ExtractedFacts = s.extractor.Extract(ctx, statement)
	p.Embeddings = make([][]float32, len(p.ExtractedFacts))
	for i, f := range p.ExtractedFacts {
		emb := embedText(ctx, s.aiClient, f.Content)
		p.Embeddings[i] = emb
		conflicts, err := findConflicts(ctx, s.facts, s.detector, scope, i, f.Content, emb)
		if err != nil {
			return Preview{}, err
		}
		p.Conflicts = append(p.Conflicts, conflicts...)
	}

	id, err := gonanoid.New()
	if err != nil {
		return Preview{}, fmt.Errorf("generate preview id: %w", err)
	}
	p.PreviewID = id
	if err := s.previews.Put(ctx, p); err != nil {
		return Preview{}, fmt.Errorf("store preview: %w", err)
	}

	logger.Info("[Facts] Remember preview created",
		"preview_id", p.PreviewID,
		"scope_id", p.ScopeID,
		"facts", len(p.ExtractedFacts),
		"conflicts", len(p.Conflicts),
		"mismatch", p.IsMismatch,
	)
	return p, nil
}

// FactUpdate is a fact created in place of the facts it superseded.
type FactUpdate struct {
	Fact       common.Fact `json:"fact"`
	Superseded []int64     `json:"superseded"`
}

type ConfirmResult struct {
	Created []common.Fact   `json:"created"`
	Updated []FactUpdate    `json:"updated"`
	Skipped []ExtractedFact `json:"skipped"`
}

// ConfirmRemember consumes the preview and writes its facts. Facts with a
// duplicate are skipped. A fact with update conflicts supersedes the
// existing facts unless their ids are listed in skipIDs, in which case it
// is created alongside them.
func (s *RememberService) ConfirmRemember(ctx context.Context, previewID string, skipIDs []int64) (ConfirmResult, error) {
	p, err := s.previews.Take(ctx, previewID)
	if err != nil {
		return ConfirmResult{}, err
	}

	skip := make(map[int64]struct{}, len(skipIDs))
	for _, id := range skipIDs {
		skip[id] = struct{}{}
	}

	res := ConfirmResult{
		Created: []common.Fact{},
		Updated: []FactUpdate{},
		Skipped: []ExtractedFact{},
	}
	for i, ef := range p.ExtractedFacts {
		var (
			duplicate bool
			supersede []int64
		)
		for _, c := range p.Conflicts {
			if c.FactIndex != i {
				continue
			}
			switch c.Type {
			case ConflictDuplicate:
				duplicate = true
			case ConflictUpdate:
				if _, skipped := skip[c.ExistingFact.ID]; !skipped {
					supersede = append(supersede, c.ExistingFact.ID)
				}
			}
		}
		if duplicate {
			res.Skipped = append(res.Skipped, ef)
			continue
		}

		fact := ef.ToFact(p.TeamID, &p.ScopeID, p.UserID)
		fact.SourceType = SourceTypeUser
		fact.SourceQuote = &p.SourceText
		if i < len(p.Embeddings) {
			fact.Embedding = p.Embeddings[i]
		}
		created, err := s.facts.CreateFact(ctx, fact)
		if err != nil {
			return res, fmt.Errorf("create fact: %w", err)
		}

		if len(supersede) == 0 {
			res.Created = append(res.Created, created)
			continue
		}
		update := FactUpdate{Fact: created, Superseded: []int64{}}
		for _, oldID := range supersede {
			if err := s.facts.InvalidateFact(ctx, oldID, &created.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					logger.Warn("[Facts] Superseded fact is already invalid", "fact_id", oldID)
					continue
				}
				return res, fmt.Errorf("invalidate fact %d: %w", oldID, err)
			}
			update.Superseded = append(update.Superseded, oldID)
		}
		res.Updated = append(res.Updated, update)
	}

	logger.Info("[Facts] Remember confirmed",
		"preview_id", previewID,
		"created", len(res.Created),
		"updated", len(res.Updated),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// GetPreview returns a pending preview without consuming it.
func (s *RememberService) GetPreview(ctx context.Context, previewID string) (Preview, error) {
	return s.previews.Get(ctx, previewID)
}

// CancelRemember drops a preview without writing anything.
func (s *RememberService) CancelRemember(ctx context.Context, previewID string) error {
	return s.previews.Delete(ctx, previewID)
}

func loadScope(ctx context.Context, facts store.FactStorage, scopeID int64) (common.Scope, error) {
	scope, err := facts.GetScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.Scope{}, ErrScopeNotFound
		}
		return common.Scope{}, fmt.Errorf("load scope: %w", err)
	}
	return scope, nil
}

// findConflicts classifies the valid facts of the scope that are close to
// emb. Facts without an embedding have no candidates.
func findConflicts(
	ctx context.Context,
	facts store.FactStorage,
	detector Detector,
	scope common.Scope,
	factIndex int,
	content string,
	emb []float32,
) ([]FactConflict, error) {
	if len(emb) == 0 {
		return nil, nil
	}
	hits, err := facts.SearchSimilarFacts(ctx, scope.TeamID, &scope.ID, emb, similarFactLimit)
	if err != nil {
		return nil, fmt.Errorf("search similar facts: %w", err)
	}
	var out []FactConflict
	for _, h := range hits {
		t := detector.Classify(content, h.Fact.Content)
		if t == ConflictNone {
			continue
		}
		out = append(out, FactConflict{
			FactIndex:    factIndex,
			ExistingFact: ExistingFact{ID: h.Fact.ID, Content: h.Fact.Content},
			Type:         t,
			Similarity:   h.Similarity,
		})
	}
	return out, nil
}
