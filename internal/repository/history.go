package repository

import (
	"context"
	"log"
	"slices"

	"facturia/internal/domain"
	"facturia/internal/kv"
)

// HistoryRepository is the append-only audit log. It deliberately exposes no
// update or delete: entries are immutable once written.
type HistoryRepository struct {
	col *kv.Collection[domain.HistoryAction, *domain.HistoryAction]
}

// Log appends one audit entry. Failures are reported to the caller but the
// entity repositories treat them as non-fatal: the business write has already
// settled and must not be rolled back for a missing audit line.
func (r *HistoryRepository) Log(ctx context.Context, kind domain.HistoryKind, title, description, entityID, entityType string, metadata map[string]string) (*domain.HistoryAction, error) {
	action := domain.HistoryAction{
		Kind:        kind,
		Title:       title,
		Description: description,
		EntityID:    entityID,
		EntityType:  entityType,
		Metadata:    metadata,
	}
	return r.col.Create(ctx, action)
}

// List returns every audit entry, oldest first.
func (r *HistoryRepository) List(ctx context.Context) ([]domain.HistoryAction, error) {
	return r.col.All(ctx)
}

// Filter applies the in-memory filter over the full loaded collection.
func (r *HistoryRepository) Filter(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryAction, error) {
	actions, err := r.col.All(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.HistoryAction, 0, len(actions))
	for _, action := range actions {
		if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, action.Kind) {
			continue
		}
		if filter.EntityType != "" && action.EntityType != filter.EntityType {
			continue
		}
		if !filter.From.IsZero() && action.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !action.CreatedAt.Before(filter.To) {
			continue
		}
		result = append(result, action)
	}
	return result, nil
}

// ReplaceAll overwrites the log wholesale. Only the bulk import path uses it.
func (r *HistoryRepository) ReplaceAll(ctx context.Context, actions []domain.HistoryAction) error {
	return r.col.ReplaceAll(ctx, actions)
}

// logOrWarn is the shared helper the entity repositories use after a
// successful write.
func (r *HistoryRepository) logOrWarn(ctx context.Context, kind domain.HistoryKind, title, description, entityID, entityType string) {
	if _, err := r.Log(ctx, kind, title, description, entityID, entityType, nil); err != nil {
		log.Printf("[history] WARN: failed to record %s for %s %s: %v", kind, entityType, entityID, err)
	}
}
