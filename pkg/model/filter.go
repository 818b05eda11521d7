package model

// SearchFilters narrows query/list/count operations (spec §4.4
// "Filter builder"). All fields are optional; the zero value places
// no additional constraint beyond the mandatory expiry exclusion that
// the vector-index controller always appends.
type SearchFilters struct {
	Workspace     string
	MemoryType    MemoryType
	MinConfidence *float64
	Tags          []string
	Metadata      map[string]any
}

// IsZero reports whether f carries no constraints at all.
func (f *SearchFilters) IsZero() bool {
	if f == nil {
		return true
	}
	return f.Workspace == "" && f.MemoryType == "" && f.MinConfidence == nil &&
		len(f.Tags) == 0 && len(f.Metadata) == 0
}
