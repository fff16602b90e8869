package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"facturia/internal/domain"
)

// Export gathers every business table into one bundle. Importing the bundle
// back restores the exact same state.
func (s *Service) Export(ctx context.Context) (domain.ExportBundle, error) {
	var bundle domain.ExportBundle
	var err error

	if bundle.Clients, err = s.repos.Clients.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export clients: %w", err)
	}
	if bundle.Articles, err = s.repos.Articles.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export articles: %w", err)
	}
	if bundle.Achats, err = s.repos.Achats.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export achats: %w", err)
	}
	if bundle.Ventes, err = s.repos.Ventes.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export ventes: %w", err)
	}
	if bundle.StockItems, err = s.repos.Stock.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export stock: %w", err)
	}
	if bundle.Factures, err = s.repos.Factures.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export factures: %w", err)
	}
	if bundle.History, err = s.repos.History.List(ctx); err != nil {
		return domain.ExportBundle{}, fmt.Errorf("export history: %w", err)
	}
	return bundle, nil
}

// Import overwrites each table that is present in the document with its
// array, leaving absent tables untouched. No per-record validation or merge:
// the document is trusted as a previously exported state.
func (s *Service) Import(ctx context.Context, payload []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return fmt.Errorf("decode import document: %w", err)
	}

	var bundle domain.ExportBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return fmt.Errorf("decode import document: %w", err)
	}

	imported := 0
	restore := []struct {
		key   string
		apply func() error
	}{
		{"clients", func() error { return s.repos.Clients.ReplaceAll(ctx, bundle.Clients) }},
		{"articles", func() error { return s.repos.Articles.ReplaceAll(ctx, bundle.Articles) }},
		{"achats", func() error { return s.repos.Achats.ReplaceAll(ctx, bundle.Achats) }},
		{"ventes", func() error { return s.repos.Ventes.ReplaceAll(ctx, bundle.Ventes) }},
		{"stock_items", func() error { return s.repos.Stock.ReplaceAll(ctx, bundle.StockItems) }},
		{"factures", func() error { return s.repos.Factures.ReplaceAll(ctx, bundle.Factures) }},
		{"history", func() error { return s.repos.History.ReplaceAll(ctx, bundle.History) }},
	}
	for _, table := range restore {
		if _, ok := keys[table.key]; !ok {
			continue
		}
		if err := table.apply(); err != nil {
			return fmt.Errorf("import %s: %w", table.key, err)
		}
		imported++
	}

	if _, err := s.repos.History.Log(ctx, domain.HistoryImportCompleted, "Import terminé",
		fmt.Sprintf("%d table(s) restaurée(s)", imported), "", "import", nil); err != nil {
		log.Printf("[service] WARN: failed to record import: %v", err)
	}
	return nil
}
