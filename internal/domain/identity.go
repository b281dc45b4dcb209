package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Assignment is one (facet name, value) pair that produced a variant.
type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IdentityKey identifies a variant by the full set of facet-value pairs that
// produced it. It is the merge key across regenerations and the id clients use
// to address products and SKUs.
type IdentityKey string

// NewIdentityKey hashes the normalized, sorted assignment pairs. The result does
// not depend on assignment order or on the letter case of facet names.
func NewIdentityKey(assignments []Assignment) IdentityKey {
	pairs := make([][2]string, 0, len(assignments))
	for _, a := range assignments {
		pairs = append(pairs, [2]string{
			strings.ToLower(strings.TrimSpace(a.Name)),
			strings.TrimSpace(a.Value),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	// Marshalling a slice of string arrays cannot fail.
	b, _ := json.Marshal(pairs)
	sum := sha256.Sum256(b)
	return IdentityKey(hex.EncodeToString(sum[:]))
}

// Short returns an abbreviated form for logs.
func (k IdentityKey) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}
