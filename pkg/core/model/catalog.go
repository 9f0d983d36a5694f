package model

import (
	"sort"
	"strings"
)

// EvidenceType is admin-managed reference data describing one scoring
// criterion: how it is backed (numeric value or attached file), its weight,
// and optional validation keywords for file content.
type EvidenceType struct {
	Code           string
	Name           string
	Priority       int
	Kind           DataKind
	AutoFillField  string   // application/student field to read when no approved evidence exists
	SpecialHousing bool     // approved evidence of this type grants low-floor eligibility
	Keywords       []string // file evidence must contain at least one of these
}

// MatchesKeywords reports whether the extracted document text satisfies the
// type's keyword validator. Types without keywords accept any document.
// Matching is case-insensitive substring search, mirroring how uploaded
// certificates are checked at submission time.
func (t EvidenceType) MatchesKeywords(text string) bool {
	if len(t.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range t.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Catalog is the full set of evidence types for an admission cycle, ordered
// by descending priority (ties broken by code) so iteration order is stable.
type Catalog struct {
	types  []EvidenceType
	byCode map[string]EvidenceType
}

// NewCatalog builds a catalog from reference data. The input slice is not
// retained.
func NewCatalog(types []EvidenceType) *Catalog {
	ordered := make([]EvidenceType, len(types))
	copy(ordered, types)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Code < ordered[j].Code
	})

	byCode := make(map[string]EvidenceType, len(ordered))
	for _, t := range ordered {
		byCode[t.Code] = t
	}

	return &Catalog{types: ordered, byCode: byCode}
}

// Types returns all evidence types in priority order.
func (c *Catalog) Types() []EvidenceType {
	return c.types
}

// ByCode looks up a single evidence type.
func (c *Catalog) ByCode(code string) (EvidenceType, bool) {
	t, ok := c.byCode[code]
	return t, ok
}
