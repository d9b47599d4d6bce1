package facts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTTLPreviewStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewTTLPreviewStore(time.Hour)

	if err := s.Put(ctx, Preview{PreviewID: "p1", SourceText: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, err := s.Get(ctx, "p1"); err != nil || got.SourceText != "x" {
		t.Fatalf("expected Get to leave the preview in place, got %+v, %v", got, err)
	}
	p, err := s.Take(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SourceText != "x" {
		t.Fatalf("expected stored preview, got %+v", p)
	}
	if _, err := s.Take(ctx, "p1"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected ErrPreviewNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "p1"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected ErrPreviewNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "unknown"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected ErrPreviewNotFound, got %v", err)
	}
}

func TestTTLPreviewStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewTTLPreviewStore(20 * time.Millisecond)

	_ = s.Put(ctx, Preview{PreviewID: "old"})
	time.Sleep(40 * time.Millisecond)
	_ = s.Put(ctx, Preview{PreviewID: "fresh"})

	if s.Len() != 1 {
		t.Fatalf("expected 1 live preview, got %d", s.Len())
	}
	if _, err := s.Take(ctx, "old"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected expired preview to be gone, got %v", err)
	}
	s.PurgeExpired(ctx)
	if err := s.Delete(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh preview to survive the purge, got %v", err)
	}
}
