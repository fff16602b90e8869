package repository

import (
	"context"
	"errors"
	"fmt"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

type VenteRepository struct {
	col     *kv.Collection[domain.Vente, *domain.Vente]
	history *HistoryRepository
}

func (r *VenteRepository) List(ctx context.Context) ([]domain.Vente, error) {
	return r.col.All(ctx)
}

func (r *VenteRepository) Get(ctx context.Context, id string) (*domain.Vente, error) {
	return r.col.Get(ctx, id)
}

// Create persists a sale under its invoice number. The number doubles as the
// record id, so a duplicate invoice number is rejected outright.
func (r *VenteRepository) Create(ctx context.Context, vente domain.Vente) (*domain.Vente, error) {
	if vente.ID == "" {
		return nil, fmt.Errorf("%w: vente requires an invoice number id", store.ErrInvalidEntity)
	}

	created, err := r.col.Create(ctx, vente)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryVenteCreated, "Vente enregistrée",
		fmt.Sprintf("Vente %s pour %s (%.2f DA)", created.ID, created.Client, created.Montant),
		created.ID, "vente")
	return created, nil
}

// Upsert inserts or replaces the sale for an invoice number and logs the
// matching created/updated action. The sale-confirmation flow relies on this
// being idempotent so an interrupted confirmation can be replayed.
func (r *VenteRepository) Upsert(ctx context.Context, vente domain.Vente) (*domain.Vente, bool, error) {
	if vente.ID == "" {
		return nil, false, fmt.Errorf("%w: vente requires an invoice number id", store.ErrInvalidEntity)
	}

	existed := true
	if _, err := r.col.Get(ctx, vente.ID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
		existed = false
	}

	saved, err := r.col.Upsert(ctx, vente)
	if err != nil {
		return nil, false, err
	}

	if existed {
		r.history.logOrWarn(ctx, domain.HistoryVenteUpdated, "Vente modifiée",
			fmt.Sprintf("Vente %s pour %s modifiée (%.2f DA)", saved.ID, saved.Client, saved.Montant),
			saved.ID, "vente")
	} else {
		r.history.logOrWarn(ctx, domain.HistoryVenteCreated, "Vente enregistrée",
			fmt.Sprintf("Vente %s pour %s (%.2f DA)", saved.ID, saved.Client, saved.Montant),
			saved.ID, "vente")
	}
	return saved, existed, nil
}

func (r *VenteRepository) Update(ctx context.Context, id string, apply func(*domain.Vente)) (*domain.Vente, error) {
	updated, err := r.col.Update(ctx, id, apply)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryVenteUpdated, "Vente modifiée",
		fmt.Sprintf("Vente %s pour %s modifiée (%.2f DA)", updated.ID, updated.Client, updated.Montant),
		updated.ID, "vente")
	return updated, nil
}

func (r *VenteRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.col.Delete(ctx, id)
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryVenteDeleted, "Vente supprimée",
		fmt.Sprintf("Vente %s pour %s supprimée (%.2f DA)", removed.ID, removed.Client, removed.Montant),
		removed.ID, "vente")
	return nil
}

func (r *VenteRepository) ReplaceAll(ctx context.Context, ventes []domain.Vente) error {
	return r.col.ReplaceAll(ctx, ventes)
}
