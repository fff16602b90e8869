// Package repository provides the typed per-entity repositories built on the
// kv layer. Every create/update/delete on a business entity appends exactly
// one HistoryAction describing the mutation; bulk rewrites (import, stock
// recalculation, invoice snapshots taken inside a sale confirmation) are not
// individual mutations and log nothing of their own.
package repository

import (
	"facturia/internal/domain"
	"facturia/internal/kv"
)

// Table names. The bulk export/import document uses these as its top-level keys.
const (
	TableClients  = "clients"
	TableArticles = "articles"
	TableAchats   = "achats"
	TableVentes   = "ventes"
	TableStock    = "stock_items"
	TableFactures = "factures"
	TableHistory  = "history"
	TableUsers    = "users"
	TableIntents  = "sale_intents"
)

type Repositories struct {
	History  *HistoryRepository
	Clients  *ClientRepository
	Articles *ArticleRepository
	Achats   *AchatRepository
	Stock    *StockRepository
	Ventes   *VenteRepository
	Factures *FactureRepository
	Users    *UserRepository
	Intents  *IntentRepository
}

func New(s *kv.Store) *Repositories {
	history := &HistoryRepository{
		col: kv.NewCollection[domain.HistoryAction](s, TableHistory, "hist"),
	}
	return &Repositories{
		History:  history,
		Clients:  &ClientRepository{col: kv.NewCollection[domain.Client](s, TableClients, "cl"), history: history},
		Articles: &ArticleRepository{col: kv.NewCollection[domain.Article](s, TableArticles, "art"), history: history},
		Achats:   &AchatRepository{col: kv.NewCollection[domain.Achat](s, TableAchats, "ach"), history: history},
		Stock:    &StockRepository{col: kv.NewCollection[domain.StockItem](s, TableStock, "stk"), history: history},
		Ventes:   &VenteRepository{col: kv.NewCollection[domain.Vente](s, TableVentes, "vnt"), history: history},
		Factures: &FactureRepository{col: kv.NewCollection[domain.Facture](s, TableFactures, "fac"), history: history},
		Users:    &UserRepository{col: kv.NewCollection[domain.UserAccount](s, TableUsers, "usr")},
		Intents:  &IntentRepository{col: kv.NewCollection[domain.SaleIntent](s, TableIntents, "intent")},
	}
}
