// Package authority maps document source types to integer trust tiers and
// applies them to metadata. Higher tiers are more trusted.
package authority

import (
	"encoding/json"
	"math"

	"github.com/papercomputeco/vellum/pkg/document"
)

// Lowest is the floor that admits every tier.
const Lowest = math.MinInt

// Policy assigns a tier to each source type.
type Policy struct {
	// Tiers maps a source_type value to its tier.
	Tiers map[string]int

	// Default is used for source types missing from Tiers.
	Default int
}

// DefaultPolicy returns the stock taxonomy: github 9, pdf 7, web 5, youtube 4.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: map[string]int{
			string(document.SourceTypeGitHub):  9,
			string(document.SourceTypePDF):     7,
			string(document.SourceTypeWeb):     5,
			string(document.SourceTypeYouTube): 4,
			string(document.SourceTypeTest):    5,
			string(document.SourceTypeOther):   1,
		},
		Default: 1,
	}
}

// For returns the tier for a source type.
func (p Policy) For(st document.SourceType) int {
	if tier, ok := p.Tiers[string(st)]; ok {
		return tier
	}
	return p.Default
}

// Apply returns a copy of metadata with source_type and source_authority
// guaranteed present. An existing integral source_authority is kept.
func (p Policy) Apply(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}

	st := document.Document{Metadata: out}.SourceType()
	out[document.KeySourceType] = string(st)

	if tier, ok := Of(out); ok {
		out[document.KeySourceAuthority] = tier
	} else {
		out[document.KeySourceAuthority] = p.For(st)
	}
	return out
}

// Of extracts source_authority from a metadata or payload map as an int.
// Floats are accepted only when integral.
func Of(m map[string]any) (int, bool) {
	v, ok := m[document.KeySourceAuthority]
	if !ok {
		return 0, false
	}
	return asInt(v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return floatToInt(f)
		}
		return int(i), true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Admits reports whether a payload clears the floor. A payload without an
// integral authority only clears Lowest.
func Admits(payload map[string]any, floor int) bool {
	if floor == Lowest {
		return true
	}
	tier, ok := Of(payload)
	return ok && tier >= floor
}
