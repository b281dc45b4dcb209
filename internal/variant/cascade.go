package variant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/metrics"
)

// ErrConfirmationRequired is returned when an edit needs confirmation but no
// confirmer was supplied.
var ErrConfirmationRequired = errors.New("variant: destructive edit requires confirmation")

// Confirmer asks the operator a yes/no question about a destructive edit.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AutoConfirm answers every question with answer.
func AutoConfirm(answer bool) Confirmer {
	return ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return answer, nil
	})
}

// Edit describes one regeneration request.
type Edit struct {
	Candidates []domain.ProductVariant
	Current    domain.Tree
	Options    domain.FacetSet
	// Cleared is set when a removal left the edited facet set without any valid
	// facet; the tree is emptied instead of merged.
	Cleared bool
}

// Outcome is the result of Policy.Apply. When Applied is false Tree equals the
// current tree and the caller must keep its pre-edit facets.
type Outcome struct {
	Tree    domain.Tree
	Delta   Delta
	Prompt  string
	Asked   bool
	Applied bool
}

// Policy gates regenerations that would discard operator data behind a
// confirmation.
type Policy struct {
	engine  *Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewPolicy wraps engine.
func NewPolicy(engine *Engine, logger *zap.Logger, m *metrics.Metrics) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{engine: engine, logger: logger, metrics: m}
}

// Engine returns the wrapped engine.
func (p *Policy) Engine() *Engine {
	return p.engine
}

// Apply computes the next tree for edit and asks confirm when the transition
// drops products or SKUs holding operator data, or when it empties a
// non-empty tree. A declined or failed confirmation leaves the tree unchanged.
func (p *Policy) Apply(ctx context.Context, edit Edit, confirm Confirmer) (Outcome, error) {
	var next domain.Tree
	if !edit.Cleared {
		next = p.engine.Merge(edit.Candidates, edit.Current, edit.Options)
	}
	delta := Diff(edit.Current, next)
	out := Outcome{Tree: next, Delta: delta}

	needsConfirm := delta.HasUserData() || (edit.Cleared && !edit.Current.Empty())
	if !needsConfirm {
		out.Applied = true
		p.commit(out)
		return out, nil
	}

	out.Prompt = delta.Prompt()
	out.Asked = true
	rejected := Outcome{Tree: edit.Current, Delta: delta, Prompt: out.Prompt, Asked: true}
	if confirm == nil {
		return rejected, ErrConfirmationRequired
	}

	ok, err := confirm.Confirm(ctx, out.Prompt)
	if err != nil {
		p.metrics.ObserveConfirmation("error")
		p.logger.Warn("confirmation failed", zap.Error(err))
		return rejected, fmt.Errorf("variant: confirm destructive edit: %w", err)
	}
	if !ok {
		p.metrics.ObserveConfirmation("declined")
		p.logger.Info("destructive edit declined",
			zap.Int("products", len(delta.Products)),
			zap.Int("skus", delta.DroppedSkuCount()),
		)
		return rejected, nil
	}

	p.metrics.ObserveConfirmation("accepted")
	out.Applied = true
	p.commit(out)
	return out, nil
}

func (p *Policy) commit(out Outcome) {
	p.metrics.ObserveMerge(len(out.Delta.Products), out.Delta.DroppedSkuCount())
	if !out.Delta.Empty() {
		p.logger.Info("variants dropped",
			zap.Int("products", len(out.Delta.Products)),
			zap.Int("skus", out.Delta.DroppedSkuCount()),
		)
	}
}
