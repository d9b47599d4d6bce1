package graph

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
)

type fakeAIClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	res := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return res, nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (f *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// memoryGraph is an in-memory GraphStorage with the same identity rules as
// the database implementation.
type memoryGraph struct {
	nodes      []common.Node
	edges      []common.Edge
	chunks     []common.Chunk
	failNodes  map[string]bool
	failChunks bool
}

func (m *memoryGraph) UpsertNode(ctx context.Context, teamID int64, entity common.ExtractedEntity, source common.SourceInfo) (common.Node, error) {
	if m.failNodes[entity.Name] {
		return common.Node{}, errors.New("insert failed")
	}
	for i := range m.nodes {
		n := &m.nodes[i]
		if n.TeamID == teamID && strings.EqualFold(n.Name, entity.Name) && n.Type == entity.Type {
			n.MentionCount++
			if n.Description == nil && entity.Description != "" {
				d := entity.Description
				n.Description = &d
			}
			return *n, nil
		}
	}
	n := common.Node{
		ID:           int64(len(m.nodes) + 1),
		TeamID:       teamID,
		Name:         entity.Name,
		Type:         entity.Type,
		MentionCount: 1,
		SourceType:   source.SourceType,
		SourceID:     source.SourceID,
	}
	if entity.Description != "" {
		d := entity.Description
		n.Description = &d
	}
	m.nodes = append(m.nodes, n)
	return n, nil
}

func (m *memoryGraph) find(teamID int64, name string) *common.Node {
	var best *common.Node
	for i := range m.nodes {
		n := &m.nodes[i]
		if n.TeamID != teamID || !strings.EqualFold(n.Name, name) {
			continue
		}
		if best == nil || n.MentionCount > best.MentionCount {
			best = n
		}
	}
	return best
}

func (m *memoryGraph) CreateEdge(ctx context.Context, teamID int64, rel common.ExtractedRelationship, source common.SourceInfo) (*common.Edge, error) {
	src, dst := m.find(teamID, rel.Source), m.find(teamID, rel.Target)
	if src == nil || dst == nil {
		return nil, nil
	}
	for i := range m.edges {
		e := &m.edges[i]
		if e.SourceNodeID == src.ID && e.TargetNodeID == dst.ID && e.Relationship == rel.Relationship {
			e.Weight += 0.1
			out := *e
			return &out, nil
		}
	}
	e := common.Edge{
		ID:           int64(len(m.edges) + 1),
		TeamID:       teamID,
		SourceNodeID: src.ID,
		TargetNodeID: dst.ID,
		Relationship: rel.Relationship,
		Weight:       1.0,
		SourceType:   source.SourceType,
		SourceID:     source.SourceID,
	}
	m.edges = append(m.edges, e)
	return &e, nil
}

func (m *memoryGraph) SaveChunk(ctx context.Context, teamID int64, content string, source common.SourceInfo, title *string, linkedNodeIDs []int64) (common.Chunk, error) {
	if m.failChunks {
		return common.Chunk{}, errors.New("chunk insert failed")
	}
	c := common.Chunk{
		ID:            int64(len(m.chunks) + 1),
		TeamID:        teamID,
		Content:       content,
		SourceType:    source.SourceType,
		SourceID:      source.SourceID,
		SourceTitle:   title,
		LinkedNodeIDs: linkedNodeIDs,
	}
	m.chunks = append(m.chunks, c)
	return c, nil
}

func (m *memoryGraph) GetNode(ctx context.Context, teamID, nodeID int64) (common.Node, error) {
	return common.Node{}, errors.New("not implemented")
}

func (m *memoryGraph) SearchNodesByEmbedding(ctx context.Context, teamID int64, embedding []float32, limit int) ([]common.Node, error) {
	return nil, nil
}

func (m *memoryGraph) NeighborNodes(ctx context.Context, teamID int64, nodeIDs, excludeIDs []int64, limit int) ([]common.Node, error) {
	return nil, nil
}

func (m *memoryGraph) ChunksForNodes(ctx context.Context, teamID int64, nodeIDs []int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}

func (m *memoryGraph) RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}
