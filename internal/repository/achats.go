package repository

import (
	"context"
	"fmt"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

type AchatRepository struct {
	col     *kv.Collection[domain.Achat, *domain.Achat]
	history *HistoryRepository
}

func (r *AchatRepository) List(ctx context.Context) ([]domain.Achat, error) {
	return r.col.All(ctx)
}

func (r *AchatRepository) Get(ctx context.Context, id string) (*domain.Achat, error) {
	return r.col.Get(ctx, id)
}

func (r *AchatRepository) Create(ctx context.Context, achat domain.Achat) (*domain.Achat, error) {
	if len(achat.Lignes) == 0 {
		return nil, fmt.Errorf("%w: achat has no lines", store.ErrInvalidEntity)
	}

	created, err := r.col.Create(ctx, achat)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryAchatCreated, "Achat enregistré",
		fmt.Sprintf("Achat de %s (%.2f DA, %d lignes)", created.Fournisseur, created.Montant, len(created.Lignes)),
		created.ID, "achat")
	return created, nil
}

func (r *AchatRepository) Update(ctx context.Context, id string, apply func(*domain.Achat)) (*domain.Achat, error) {
	updated, err := r.col.Update(ctx, id, apply)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryAchatUpdated, "Achat modifié",
		fmt.Sprintf("Achat de %s modifié (%.2f DA)", updated.Fournisseur, updated.Montant),
		updated.ID, "achat")
	return updated, nil
}

func (r *AchatRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.col.Delete(ctx, id)
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryAchatDeleted, "Achat supprimé",
		fmt.Sprintf("Achat de %s supprimé (%.2f DA)", removed.Fournisseur, removed.Montant),
		removed.ID, "achat")
	return nil
}

func (r *AchatRepository) ReplaceAll(ctx context.Context, achats []domain.Achat) error {
	return r.col.ReplaceAll(ctx, achats)
}
