package common

import "time"

// Entity types understood by the extraction prompt. TeamMember is only
// produced by roster sync but must be storable.
const (
	NodeTypePerson     = "person"
	NodeTypeProduct    = "product"
	NodeTypeCompany    = "company"
	NodeTypeConcept    = "concept"
	NodeTypeDate       = "date"
	NodeTypeEvent      = "event"
	NodeTypeLocation   = "location"
	NodeTypeTeamMember = "team_member"
)

// ExtractableNodeTypes is the taxonomy offered to the model during extraction.
var ExtractableNodeTypes = []string{
	NodeTypePerson,
	NodeTypeProduct,
	NodeTypeCompany,
	NodeTypeConcept,
	NodeTypeDate,
	NodeTypeEvent,
	NodeTypeLocation,
}

// RelationshipTypes is the fixed set of edge labels.
var RelationshipTypes = []string{
	"works_on",
	"owns",
	"uses",
	"part_of",
	"related_to",
	"depends_on",
	"created_by",
	"located_in",
}

// DefaultRelationship is used when the model returns an unknown label.
const DefaultRelationship = "related_to"

// Node is an entity of the team knowledge graph. Nodes are identified by
// (team, lower(name), type) and are never deleted; repeated sightings only
// raise MentionCount.
type Node struct {
	ID           int64     `json:"id"`
	TeamID       int64     `json:"team_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Description  *string   `json:"description,omitempty"`
	Embedding    []float32 `json:"-"`
	MentionCount int32     `json:"mention_count"`
	SourceType   string    `json:"source_type"`
	SourceID     *string   `json:"source_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Edge is a directed, weighted relationship between two nodes. Weight is
// reinforced every time the same (source, target, relationship) triple is
// observed again.
type Edge struct {
	ID           int64     `json:"id"`
	TeamID       int64     `json:"team_id"`
	SourceNodeID int64     `json:"source_node_id"`
	TargetNodeID int64     `json:"target_node_id"`
	Relationship string    `json:"relationship"`
	Weight       float64   `json:"weight"`
	SourceType   string    `json:"source_type"`
	SourceID     *string   `json:"source_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chunk is an immutable slice of source text together with the nodes that
// were discovered in it.
type Chunk struct {
	ID            int64     `json:"id"`
	TeamID        int64     `json:"team_id"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"`
	SourceType    string    `json:"source_type"`
	SourceID      *string   `json:"source_id,omitempty"`
	SourceTitle   *string   `json:"source_title,omitempty"`
	LinkedNodeIDs []int64   `json:"linked_node_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fact is an atomic statement of team knowledge. Facts are never updated in
// place: they are invalidated by setting ValidUntil and optionally pointing
// SupersededBy at the newer fact.
type Fact struct {
	ID              int64      `json:"id"`
	TeamID          int64      `json:"team_id"`
	ScopeID         *int64     `json:"scope_id,omitempty"`
	Content         string     `json:"content"`
	EntityType      *string    `json:"entity_type,omitempty"`
	EntityName      *string    `json:"entity_name,omitempty"`
	Attribute       *string    `json:"attribute,omitempty"`
	Value           *string    `json:"value,omitempty"`
	Category        string     `json:"category"`
	ConfidenceScore float64    `json:"confidence_score"`
	SourceType      string     `json:"source_type"`
	SourceQuote     *string    `json:"source_quote,omitempty"`
	SourceURL       *string    `json:"source_url,omitempty"`
	CreatedBy       int64      `json:"created_by"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	SupersededBy    *int64     `json:"superseded_by,omitempty"`
	ContextTags     []string   `json:"context_tags"`
	Embedding       []float32  `json:"-"`
}

// IsValid reports whether the fact has not been invalidated.
func (f Fact) IsValid() bool {
	return f.ValidUntil == nil
}

// Scope is a conversation space of a team. Ask and Remember operate on a scope.
type Scope struct {
	ID     int64  `json:"id"`
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
}

// Document status values.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusProcessed  = "processed"
	DocumentStatusFailed     = "failed"
)

// Document source types. Uploaded and inline text documents are stored in
// object storage, url documents are fetched on ingestion.
const (
	DocumentSourceUpload = "upload"
	DocumentSourceText   = "text"
	DocumentSourceURL    = "url"
)

// Document is the bookkeeping row of an ingested source.
type Document struct {
	ID         int64     `json:"id"`
	TeamID     int64     `json:"team_id"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	Location   string    `json:"location"`
	Status     string    `json:"status"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SourceInfo records where a node, edge or chunk came from.
type SourceInfo struct {
	SourceType string  `json:"source_type"`
	SourceID   *string `json:"source_id,omitempty"`
}

// ExtractedEntity is an entity as returned by the extraction model.
type ExtractedEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExtractedRelationship references entities by name.
type ExtractedRelationship struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// ExtractionResult is the outcome of running the extractor on one chunk.
type ExtractionResult struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}
