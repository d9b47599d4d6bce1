package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type staticLoader struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (l *staticLoader) GetSourceBytes(ctx context.Context, src Source) ([]byte, error) {
	l.calls.Add(1)
	return l.data, l.err
}

func TestKindFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    SourceKind
		wantErr bool
	}{
		{"notes.md", SourceKindText, false},
		{"NOTES.TXT", SourceKindText, false},
		{"README", SourceKindText, false},
		{"report.docx", SourceKindDocx, false},
		{"slides.pptx", "", true},
		{"image.png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KindFromName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Fatalf("expected ErrUnsupported, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSourceGetText(t *testing.T) {
	l := &staticLoader{data: []byte("hello world")}
	src := Source{ID: "1", Path: "a.txt", Kind: SourceKindText, Loader: l}

	got, err := src.GetText(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("expected hello world, got %q", got)
	}
}

func TestSourceGetTextRejectsBinary(t *testing.T) {
	l := &staticLoader{data: []byte{0xff, 0xfe, 0x00}}
	src := Source{ID: "1", Path: "a.bin", Loader: l}

	if _, err := src.GetText(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestSourceGetTextNoLoader(t *testing.T) {
	if _, err := (Source{ID: "1"}).GetText(context.Background()); err == nil {
		t.Fatalf("expected error without loader")
	}
}

func TestMemoCachesSuccess(t *testing.T) {
	var m Memo
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return []byte("x"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Do("k", fn); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := m.Do("k", fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls.Load() < 1 || calls.Load() > 8 {
		t.Fatalf("expected between 1 and 8 loads, got %d", calls.Load())
	}
	before := calls.Load()
	if _, err := m.Do("k", fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("expected cached result, got another load")
	}
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	var m Memo
	calls := 0
	fn := func() ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return []byte("ok"), nil
	}

	if _, err := m.Do("k", fn); err == nil {
		t.Fatalf("expected error on first load")
	}
	got, err := m.Do("k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "ok" || calls != 2 {
		t.Fatalf("expected ok after 2 calls, got %q after %d", got, calls)
	}
}
