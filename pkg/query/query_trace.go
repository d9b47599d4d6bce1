package query

import (
	"slices"
	"sync"
)

type TraceEventKind string

const (
	TraceEventEntryNodeIDs   TraceEventKind = "entry_node_ids"
	TraceEventRelatedNodeIDs TraceEventKind = "related_node_ids"
	TraceEventChunkIDs       TraceEventKind = "chunk_ids"
	TraceEventFactIDs        TraceEventKind = "fact_ids"
	TraceEventRecentFallback TraceEventKind = "recent_fallback"
)

// TraceEvent is an extensible event envelope for retrieval tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind
	IDs  []int64
	Hop  int
}

// Tracer is a sink for retrieval tracing events.
//
// Implementers can forward events to logs or custom post-processing.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func record(t Tracer, kind TraceEventKind, hop int, ids ...int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: kind, IDs: ids, Hop: hop})
}

// QueryTrace collects what a retrieval run looked at.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	entryNodeIDs   map[int64]struct{}
	relatedNodeIDs map[int64]struct{}
	chunkIDs       map[int64]struct{}
	factIDs        map[int64]struct{}
	maxHop         int
	recentFallback bool
}

type QueryTraceSnapshot struct {
	EntryNodeIDs   []int64 `json:"entry_node_ids"`
	RelatedNodeIDs []int64 `json:"related_node_ids"`
	ChunkIDs       []int64 `json:"chunk_ids"`
	FactIDs        []int64 `json:"fact_ids"`
	Hops           int     `json:"hops"`
	RecentFallback bool    `json:"recent_fallback"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		entryNodeIDs:   make(map[int64]struct{}),
		relatedNodeIDs: make(map[int64]struct{}),
		chunkIDs:       make(map[int64]struct{}),
		factIDs:        make(map[int64]struct{}),
	}
}

func addIDs(dst map[int64]struct{}, ids []int64) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		dst[id] = struct{}{}
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventEntryNodeIDs:
		addIDs(t.entryNodeIDs, event.IDs)
	case TraceEventRelatedNodeIDs:
		addIDs(t.relatedNodeIDs, event.IDs)
		t.maxHop = max(t.maxHop, event.Hop)
	case TraceEventChunkIDs:
		addIDs(t.chunkIDs, event.IDs)
	case TraceEventFactIDs:
		addIDs(t.factIDs, event.IDs)
	case TraceEventRecentFallback:
		t.recentFallback = true
		addIDs(t.chunkIDs, event.IDs)
	default:
		return
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		EntryNodeIDs:   sortedIDs(t.entryNodeIDs),
		RelatedNodeIDs: sortedIDs(t.relatedNodeIDs),
		ChunkIDs:       sortedIDs(t.chunkIDs),
		FactIDs:        sortedIDs(t.factIDs),
		Hops:           t.maxHop,
		RecentFallback: t.recentFallback,
	}
}
