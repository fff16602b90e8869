package repository

import (
	"context"
	"slices"

	"facturia/internal/domain"
	"facturia/internal/kv"
)

// IntentRepository stores the write-ahead records of sale confirmations.
// Intents are infrastructure, not business entities, so they log no history.
type IntentRepository struct {
	col *kv.Collection[domain.SaleIntent, *domain.SaleIntent]
}

func (r *IntentRepository) Create(ctx context.Context, intent domain.SaleIntent) (*domain.SaleIntent, error) {
	intent.Status = domain.IntentPending
	return r.col.Create(ctx, intent)
}

// MarkStep records that a confirmation step settled. Idempotent: replaying a
// step that is already recorded changes nothing.
func (r *IntentRepository) MarkStep(ctx context.Context, id string, step string) (*domain.SaleIntent, error) {
	return r.col.Update(ctx, id, func(intent *domain.SaleIntent) {
		if !slices.Contains(intent.StepsDone, step) {
			intent.StepsDone = append(intent.StepsDone, step)
		}
	})
}

func (r *IntentRepository) Complete(ctx context.Context, id string) error {
	_, err := r.col.Update(ctx, id, func(intent *domain.SaleIntent) {
		intent.Status = domain.IntentComplete
	})
	return err
}

// Pending returns the intents whose confirmation never finished.
func (r *IntentRepository) Pending(ctx context.Context) ([]domain.SaleIntent, error) {
	intents, err := r.col.All(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]domain.SaleIntent, 0, len(intents))
	for _, intent := range intents {
		if intent.Status == domain.IntentPending {
			pending = append(pending, intent)
		}
	}
	return pending, nil
}
