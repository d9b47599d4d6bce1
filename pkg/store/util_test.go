package store

import (
	"reflect"
	"testing"

	"github.com/ravenloom/backend/pkg/common"
)

func TestDedupeIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{"nil", nil, nil},
		{"keeps order", []int64{3, 1, 2}, []int64{3, 1, 2}},
		{"drops repeats", []int64{3, 1, 3, 2, 1}, []int64{3, 1, 2}},
		{"drops zero", []int64{0, 4, 0}, []int64{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeIDs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNodeEmbeddingText(t *testing.T) {
	got := NodeEmbeddingText(common.ExtractedEntity{Name: "Fugly", Type: "product", Description: "Internal dashboard"})
	if got != "product: Fugly. Internal dashboard" {
		t.Fatalf("unexpected embedding text %q", got)
	}
	got = NodeEmbeddingText(common.ExtractedEntity{Name: "Fugly", Type: "product"})
	if got != "product: Fugly." {
		t.Fatalf("unexpected embedding text %q", got)
	}
}

func TestNodeKeyIsCaseInsensitive(t *testing.T) {
	if NodeKey(1, "Fugly", "product") != NodeKey(1, " fugly", "product") {
		t.Fatalf("expected equal keys for differently cased names")
	}
	if NodeKey(1, "Fugly", "product") == NodeKey(2, "Fugly", "product") {
		t.Fatalf("expected team id to be part of the key")
	}
}
