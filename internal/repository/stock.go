package repository

import (
	"context"
	"fmt"

	"facturia/internal/domain"
	"facturia/internal/kv"
)

// StockRepository manages depot quantities. The record id is the composite
// key StockKey(ref, depot), so lookups are keyed rather than scanned.
// Create/Update/Delete are the manual-adjustment paths and log history; the
// consistency engine in the service layer rewrites the collection wholesale
// through ReplaceAll as part of a purchase or sale action.
type StockRepository struct {
	col     *kv.Collection[domain.StockItem, *domain.StockItem]
	history *HistoryRepository
}

func (r *StockRepository) List(ctx context.Context) ([]domain.StockItem, error) {
	return r.col.All(ctx)
}

func (r *StockRepository) Get(ctx context.Context, ref, depot string) (*domain.StockItem, error) {
	return r.col.Get(ctx, domain.StockKey(ref, depot))
}

func (r *StockRepository) Create(ctx context.Context, item domain.StockItem) (*domain.StockItem, error) {
	item.ID = domain.StockKey(item.Ref, item.Depot)

	created, err := r.col.Create(ctx, item)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryStockCreated, "Stock créé",
		fmt.Sprintf("Stock %s au dépôt %s initialisé à %d", created.Ref, created.Depot, created.Quantite),
		created.ID, "stock")
	return created, nil
}

func (r *StockRepository) Update(ctx context.Context, ref, depot string, apply func(*domain.StockItem)) (*domain.StockItem, error) {
	updated, err := r.col.Update(ctx, domain.StockKey(ref, depot), apply)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryStockUpdated, "Stock ajusté",
		fmt.Sprintf("Stock %s au dépôt %s ajusté à %d", updated.Ref, updated.Depot, updated.Quantite),
		updated.ID, "stock")
	return updated, nil
}

func (r *StockRepository) Delete(ctx context.Context, ref, depot string) error {
	removed, err := r.col.Delete(ctx, domain.StockKey(ref, depot))
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryStockDeleted, "Stock supprimé",
		fmt.Sprintf("Stock %s au dépôt %s supprimé", removed.Ref, removed.Depot),
		removed.ID, "stock")
	return nil
}

// ReplaceAll rewrites the whole stock collection. The consistency engine and
// the bulk import use it; no per-row history entries are produced.
func (r *StockRepository) ReplaceAll(ctx context.Context, items []domain.StockItem) error {
	for i := range items {
		items[i].ID = domain.StockKey(items[i].Ref, items[i].Depot)
	}
	return r.col.ReplaceAll(ctx, items)
}
