package media

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"product-variant-service/internal/domain"
)

// Predefined errors for media collection edits.
var (
	ErrMediaNotFound  = errors.New("media: item not found")
	ErrRemovePrimary  = errors.New("media: cannot remove primary image")
	ErrBrokenSequence = errors.New("media: sequence invariant violated")
)

// Ref is a resolved upload: the stored location of one file.
type Ref struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// Append adds uploaded references after the current last item. The first item
// of an empty collection becomes the primary (sequence 1).
func Append(items []domain.MediaItem, refs []Ref) []domain.MediaItem {
	out := sorted(items)
	next := maxSequence(out) + 1
	if len(out) == 0 {
		next = 1
	}
	for _, ref := range refs {
		out = append(out, domain.MediaItem{
			ID:        uuid.NewString(),
			URL:       ref.URL,
			MediaType: ref.MediaType,
			Sequence:  next,
			Active:    true,
		})
		next++
	}
	return out
}

// SetPrimary swaps the sequence of the target item with the current primary.
// No other item moves.
func SetPrimary(items []domain.MediaItem, id string) ([]domain.MediaItem, error) {
	out := sorted(items)
	target := indexOf(out, id)
	if target < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, id)
	}
	if out[target].Sequence == 1 {
		return out, nil
	}
	for i := range out {
		if out[i].Sequence == 1 {
			out[i].Sequence = out[target].Sequence
			break
		}
	}
	out[target].Sequence = 1
	return sorted(out), nil
}

// Remove deletes a non-primary item and renumbers the rest contiguously.
func Remove(items []domain.MediaItem, id string) ([]domain.MediaItem, error) {
	out := sorted(items)
	target := indexOf(out, id)
	if target < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, id)
	}
	if out[target].Sequence == 1 {
		return nil, ErrRemovePrimary
	}
	out = append(out[:target], out[target+1:]...)
	for i := range out {
		out[i].Sequence = i + 1
	}
	return out, nil
}

// Check verifies that a non-empty collection has exactly one primary and that
// the sequences run 1..n without gaps.
func Check(items []domain.MediaItem) error {
	out := sorted(items)
	for i, m := range out {
		if m.Sequence != i+1 {
			return fmt.Errorf("%w: position %d has sequence %d", ErrBrokenSequence, i+1, m.Sequence)
		}
	}
	return nil
}

func sorted(items []domain.MediaItem) []domain.MediaItem {
	out := append([]domain.MediaItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func maxSequence(items []domain.MediaItem) int {
	m := 0
	for _, it := range items {
		if it.Sequence > m {
			m = it.Sequence
		}
	}
	return m
}

func indexOf(items []domain.MediaItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
