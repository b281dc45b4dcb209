package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined errors for facet mutations.
var (
	ErrFacetNotFound  = errors.New("domain: facet not found")
	ErrDuplicateFacet = errors.New("domain: facet name already used in this set")
	ErrDuplicateValue = errors.New("domain: value already present in facet")
	ErrEmptyValue     = errors.New("domain: facet value must not be blank")
)

// Facet is a named property (e.g. Color) or option (e.g. Size) with the values
// the operator entered for it. Values behave as an ordered set.
type Facet struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Valid reports whether the facet takes part in generation: it needs a name and
// at least one value.
func (f Facet) Valid() bool {
	return strings.TrimSpace(f.Name) != "" && len(f.Values) > 0
}

func (f Facet) hasValue(v string) bool {
	for _, existing := range f.Values {
		if existing == v {
			return true
		}
	}
	return false
}

// FacetSet is the ordered list of facets of one kind (properties or options).
// All mutating methods return a new set and leave the receiver untouched.
type FacetSet []Facet

// Clone returns a deep copy of the set.
func (s FacetSet) Clone() FacetSet {
	if s == nil {
		return nil
	}
	out := make(FacetSet, len(s))
	for i, f := range s {
		out[i] = Facet{Name: f.Name, Values: append([]string(nil), f.Values...)}
	}
	return out
}

// Valid returns the facets that participate in generation, in declaration order.
func (s FacetSet) Valid() FacetSet {
	var out FacetSet
	for _, f := range s {
		if f.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// HasValid reports whether at least one facet in the set is valid.
func (s FacetSet) HasValid() bool {
	for _, f := range s {
		if f.Valid() {
			return true
		}
	}
	return false
}

// AddFacet appends a facet row. The name may be blank while the operator has not
// picked one yet; non-blank names must be unique within the set.
func (s FacetSet) AddFacet(name string) (FacetSet, error) {
	name = strings.TrimSpace(name)
	if err := s.checkName(-1, name); err != nil {
		return nil, err
	}
	out := s.Clone()
	return append(out, Facet{Name: name}), nil
}

// RemoveFacet drops the facet row at index i.
func (s FacetSet) RemoveFacet(i int) (FacetSet, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: index %d", ErrFacetNotFound, i)
	}
	out := s.Clone()
	return append(out[:i], out[i+1:]...), nil
}

// RenameFacet changes the name of the facet at index i.
func (s FacetSet) RenameFacet(i int, name string) (FacetSet, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: index %d", ErrFacetNotFound, i)
	}
	name = strings.TrimSpace(name)
	if err := s.checkName(i, name); err != nil {
		return nil, err
	}
	out := s.Clone()
	out[i].Name = name
	return out, nil
}

// AddValue appends a value to the facet at index i.
func (s FacetSet) AddValue(i int, value string) (FacetSet, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: index %d", ErrFacetNotFound, i)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyValue
	}
	if s[i].hasValue(value) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateValue, value)
	}
	out := s.Clone()
	out[i].Values = append(out[i].Values, value)
	return out, nil
}

// RemoveValue removes a value from the facet at index i.
func (s FacetSet) RemoveValue(i int, value string) (FacetSet, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: index %d", ErrFacetNotFound, i)
	}
	value = strings.TrimSpace(value)
	if !s[i].hasValue(value) {
		return nil, fmt.Errorf("%w: value %q in facet %q", ErrFacetNotFound, value, s[i].Name)
	}
	out := s.Clone()
	values := out[i].Values[:0]
	for _, v := range out[i].Values {
		if v != value {
			values = append(values, v)
		}
	}
	out[i].Values = values
	return out, nil
}

// Validate checks a set that was built without the mutation methods, such as
// one decoded from a request: non-blank names unique ignoring case, and values
// non-blank and unique within their facet.
func (s FacetSet) Validate() error {
	for i, f := range s {
		if err := s.checkName(i, strings.TrimSpace(f.Name)); err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(f.Values))
		for _, v := range f.Values {
			v = strings.TrimSpace(v)
			if v == "" {
				return fmt.Errorf("%w: facet %q", ErrEmptyValue, f.Name)
			}
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: %q in facet %q", ErrDuplicateValue, v, f.Name)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

// checkName enforces name uniqueness, ignoring the row at skip.
func (s FacetSet) checkName(skip int, name string) error {
	if name == "" {
		return nil
	}
	for i, f := range s {
		if i == skip {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), name) {
			return fmt.Errorf("%w: %q", ErrDuplicateFacet, name)
		}
	}
	return nil
}
