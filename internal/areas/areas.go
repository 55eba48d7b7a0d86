// Package areas holds the management area registry and the name harmonization
// used to join abundance, harvest and survey sources.
package areas

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/errors"
)

// Area is one wild reindeer management unit.
type Area struct {
	ID      string            // canonical ASCII identifier
	Name    string            // display name
	AreaKm2 float64           // habitat area
	Exclude []conf.ExclusionWindow
}

// Excluded reports whether the area's abundance data is unusable in year.
func (a *Area) Excluded(year int) bool {
	for _, w := range a.Exclude {
		if year >= w.From && year <= w.To {
			return true
		}
	}
	return false
}

// Registry resolves area names from any input source to canonical areas.
type Registry struct {
	areas   []Area          // sorted by ID
	byID    map[string]int  // canonical id -> index into areas
	byAlias map[string]int  // canonicalized alias or name -> index
}

// NewRegistry builds a registry from configured areas. Area order is
// alphabetical by canonical id regardless of config order.
func NewRegistry(cfgs []conf.AreaConfig) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]int, len(cfgs)),
		byAlias: make(map[string]int, len(cfgs)*2),
	}

	r.areas = make([]Area, len(cfgs))
	for i, c := range cfgs {
		r.areas[i] = Area{ID: c.ID, Name: c.Name, AreaKm2: c.AreaKm2, Exclude: c.Exclude}
	}
	sort.Slice(r.areas, func(i, j int) bool { return r.areas[i].ID < r.areas[j].ID })

	for i := range r.areas {
		a := &r.areas[i]
		r.byID[a.ID] = i
		r.byAlias[Canonicalize(a.ID)] = i
		r.byAlias[Canonicalize(a.Name)] = i
	}
	// aliases registered after names so a clash is caught below
	for _, c := range cfgs {
		i := r.byID[c.ID]
		for _, alias := range c.Aliases {
			key := Canonicalize(alias)
			if prev, ok := r.byAlias[key]; ok && prev != i {
				return nil, errors.Newf("alias %q of area %q collides with area %q",
					alias, c.ID, r.areas[prev].ID).
					Component("areas").
					Category(errors.CategoryConfiguration).
					Build()
			}
			r.byAlias[key] = i
		}
	}
	return r, nil
}

// All returns areas in canonical (alphabetical by id) order.
func (r *Registry) All() []Area {
	return r.areas
}

// IDs returns canonical area ids in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.areas))
	for i := range r.areas {
		ids[i] = r.areas[i].ID
	}
	return ids
}

// Index returns the registry position of the given canonical id.
func (r *Registry) Index(id string) (int, bool) {
	i, ok := r.byID[id]
	return i, ok
}

// ByID returns the area with the given canonical id.
func (r *Registry) ByID(id string) (*Area, bool) {
	if i, ok := r.byID[id]; ok {
		return &r.areas[i], true
	}
	return nil, false
}

// Resolve maps a name as it appears in any input source to its canonical
// area. A name that fails to resolve is a fatal join error, silent
// mismatches would corrupt every downstream join.
func (r *Registry) Resolve(name string) (*Area, error) {
	if i, ok := r.byAlias[Canonicalize(name)]; ok {
		return &r.areas[i], nil
	}
	return nil, errors.Newf("area name %q does not resolve to any configured area", name).
		Component("areas").
		Category(errors.CategoryNameMismatch).
		Context("name", name).
		Build()
}

// norwegianFold maps letters that NFD decomposition leaves alone.
var norwegianFold = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "Ae",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "Th",
)

// Canonicalize reduces an area name to the ASCII-safe join key: diacritics
// stripped, folded to lower case, separators collapsed to underscores.
func Canonicalize(name string) string {
	s := norwegianFold.Replace(name)

	// strip combining marks left by NFD decomposition (å, é, ...)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	})
	return strings.Join(fields, "_")
}
