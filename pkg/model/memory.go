// Package model defines the core data types of the memory service:
// the stored Memory Point, its search filters, and the response
// envelope returned by every tool operation.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryID uniquely identifies a stored Memory Point.
type MemoryID string

// NewMemoryID generates a new unique MemoryID.
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// ParseMemoryID validates s as a UUID and returns it as a MemoryID.
func ParseMemoryID(s string) (MemoryID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", goerr.Wrap(err, "invalid memory id", goerr.V("id", s))
	}
	return MemoryID(s), nil
}

// MemoryType classifies the expected lifetime of a Memory Point.
type MemoryType string

const (
	MemoryTypeLongTerm  MemoryType = "long-term"
	MemoryTypeEpisodic  MemoryType = "episodic"
	MemoryTypeShortTerm MemoryType = "short-term"
)

// Valid reports whether t is one of the three defined memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryTypeLongTerm, MemoryTypeEpisodic, MemoryTypeShortTerm:
		return true
	default:
		return false
	}
}

// DefaultExpiry returns the duration after which a point of this type
// expires if the caller did not supply an explicit expires_at, or
// false if the type never auto-expires (long-term).
func (t MemoryType) DefaultExpiry() (time.Duration, bool) {
	switch t {
	case MemoryTypeEpisodic:
		return 90 * 24 * time.Hour, true
	case MemoryTypeShortTerm:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

var workspaceSlugRe = regexp.MustCompile(`^[a-z0-9_-]{1,100}$`)

// ReservedWorkspaces are workspace values that may never be used
// because they collide with internal namespaces.
var ReservedWorkspaces = map[string]bool{
	"system": true, "metadata": true, "admin": true, "internal": true,
	"default": true, "null": true, "undefined": true, "root": true,
}

// ErrReservedWorkspace is returned when a caller requests a reserved
// workspace name.
var ErrReservedWorkspace = goerr.New("workspace name is reserved")

// ErrInvalidWorkspace is returned when a workspace fails the slug
// pattern or length constraints.
var ErrInvalidWorkspace = goerr.New("invalid workspace name")

// ValidateWorkspace checks a workspace value against the slug rule
// `[a-z0-9_-]{1,100}` (case-insensitive on input, compared lowercase)
// and the reserved-name list. An empty string is always valid — it
// means "no workspace".
func ValidateWorkspace(ws string) error {
	if ws == "" {
		return nil
	}
	lower := strings.ToLower(ws)
	if !workspaceSlugRe.MatchString(lower) {
		return goerr.Wrap(ErrInvalidWorkspace, "workspace must match [a-z0-9_-]{1,100}", goerr.V("workspace", ws))
	}
	if ReservedWorkspaces[lower] {
		return goerr.Wrap(ErrReservedWorkspace, "workspace name is reserved", goerr.V("workspace", ws))
	}
	return nil
}

// NormalizeWorkspace lowercases a workspace value for storage.
func NormalizeWorkspace(ws string) string {
	return strings.ToLower(ws)
}

// Point is the atomic stored record: a Memory Point (spec §3).
//
// Extra carries caller-supplied fields with no typed position in this
// struct; they round-trip through the vector index unchanged.
type Point struct {
	ID         MemoryID
	Content    string
	Workspace  string
	MemoryType MemoryType
	Confidence float64
	Tags       []string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time

	AccessCount    int
	LastAccessedAt *time.Time

	ChunkIndex   *int
	TotalChunks  *int
	ChunkGroupID string

	DenseSmall []float32
	DenseLarge []float32

	Extra map[string]any
}

// IsChunkMember reports whether p is one chunk of a chunked document.
// Per spec §3, chunk_index/total_chunks/chunk_group_id are present
// together or not at all.
func (p *Point) IsChunkMember() bool {
	return p.ChunkIndex != nil && p.TotalChunks != nil && p.ChunkGroupID != ""
}

// Validate checks the structural invariants of a Point that are the
// caller's responsibility to satisfy before it reaches the index
// (dimension checks are the embedding engine's responsibility, see
// pkg/embedding).
func (p *Point) Validate() error {
	if len(p.Content) == 0 {
		return goerr.New("content must not be empty")
	}
	if len(p.Content) > 100_000 {
		return goerr.New("content exceeds 100000 characters", goerr.V("length", len(p.Content)))
	}
	if p.MemoryType != "" && !p.MemoryType.Valid() {
		return goerr.New("invalid memory_type", goerr.V("memory_type", p.MemoryType))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return goerr.New("confidence must be within [0,1]", goerr.V("confidence", p.Confidence))
	}
	if len(p.Tags) > 20 {
		return goerr.New("at most 20 tags are allowed", goerr.V("count", len(p.Tags)))
	}
	for _, tag := range p.Tags {
		if len(tag) == 0 || len(tag) > 50 {
			return goerr.New("tag length must be within [1,50]", goerr.V("tag", tag))
		}
	}
	if err := ValidateWorkspace(p.Workspace); err != nil {
		return err
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return goerr.New("updated_at precedes created_at")
	}
	hasIdx, hasTotal, hasGroup := p.ChunkIndex != nil, p.TotalChunks != nil, p.ChunkGroupID != ""
	if hasIdx || hasTotal || hasGroup {
		if !(hasIdx && hasTotal && hasGroup) {
			return goerr.New("chunk_index, total_chunks and chunk_group_id must all be present together")
		}
		if *p.ChunkIndex < 0 || *p.ChunkIndex >= *p.TotalChunks {
			return goerr.New("chunk_index out of range", goerr.V("chunk_index", *p.ChunkIndex), goerr.V("total_chunks", *p.TotalChunks))
		}
	}
	return nil
}

// IsExpired reports whether p's expires_at has passed as of now.
func (p *Point) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// ApplyDefaults fills in synthesized defaults for fields absent at
// create time, per spec §4.4 Upsert.
func (p *Point) ApplyDefaults(now time.Time) {
	if p.ID == "" {
		p.ID = NewMemoryID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.MemoryType == "" {
		p.MemoryType = MemoryTypeLongTerm
	}
	if p.Confidence == 0 {
		p.Confidence = 0.7
	}
}

// String renders a short debug description, used in logs.
func (p *Point) String() string {
	return fmt.Sprintf("Point{id=%s, workspace=%s, type=%s}", p.ID, p.Workspace, p.MemoryType)
}
