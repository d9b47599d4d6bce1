package store

import (
	"fmt"
	"strings"

	"github.com/ravenloom/backend/pkg/common"
)

// DedupeIDs drops zero and repeated ids while keeping the first occurrence order.
func DedupeIDs(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if v == 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NodeEmbeddingText is the text a node embedding is computed from.
func NodeEmbeddingText(entity common.ExtractedEntity) string {
	desc := strings.TrimSpace(entity.Description)
	if desc == "" {
		return fmt.Sprintf("%s: %s.", entity.Type, entity.Name)
	}
	return fmt.Sprintf("%s: %s. %s", entity.Type, entity.Name, desc)
}

// NodeKey is the identity of a node within a team.
func NodeKey(teamID int64, name, nodeType string) string {
	return fmt.Sprintf("%d|%s|%s", teamID, strings.ToLower(strings.TrimSpace(name)), nodeType)
}
