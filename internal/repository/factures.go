package repository

import (
	"context"
	"fmt"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

// FactureRepository holds the immutable complete-invoice snapshots. The
// record id is the invoice number, always equal to the Vente id written in
// the same confirmation.
type FactureRepository struct {
	col     *kv.Collection[domain.Facture, *domain.Facture]
	history *HistoryRepository
}

func (r *FactureRepository) List(ctx context.Context) ([]domain.Facture, error) {
	return r.col.All(ctx)
}

func (r *FactureRepository) Get(ctx context.Context, id string) (*domain.Facture, error) {
	return r.col.Get(ctx, id)
}

// Create persists a snapshot under its invoice number, rejecting duplicates.
func (r *FactureRepository) Create(ctx context.Context, facture domain.Facture) (*domain.Facture, error) {
	if facture.ID == "" {
		return nil, fmt.Errorf("%w: facture requires an invoice number id", store.ErrInvalidEntity)
	}

	created, err := r.col.Create(ctx, facture)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryFactureCreated, "Facture générée",
		fmt.Sprintf("Facture %s pour %s (%.2f %s TTC)", created.ID, created.Client.RaisonSocial, created.Totals.TTC, created.Devise),
		created.ID, "facture")
	return created, nil
}

// Snapshot writes or overwrites the invoice snapshot as part of a sale
// confirmation. The confirmation is one logical action audited through its
// Vente, so this path appends no history entry of its own.
func (r *FactureRepository) Snapshot(ctx context.Context, facture domain.Facture) (*domain.Facture, error) {
	if facture.ID == "" {
		return nil, fmt.Errorf("%w: facture requires an invoice number id", store.ErrInvalidEntity)
	}
	return r.col.Upsert(ctx, facture)
}

func (r *FactureRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.col.Delete(ctx, id)
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryFactureDeleted, "Facture supprimée",
		fmt.Sprintf("Facture %s pour %s supprimée", removed.ID, removed.Client.RaisonSocial),
		removed.ID, "facture")
	return nil
}

func (r *FactureRepository) ReplaceAll(ctx context.Context, factures []domain.Facture) error {
	return r.col.ReplaceAll(ctx, factures)
}
