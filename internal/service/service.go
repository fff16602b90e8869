package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"facturia/internal/domain"
	"facturia/internal/repository"
	"facturia/internal/settings"
	"facturia/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service orchestrates the flows that span several tables: purchase and sale
// confirmation, invoice numbering, export/import, and crash recovery of
// interrupted confirmations.
type Service struct {
	repos    *repository.Repositories
	settings settings.Provider

	// Serializes number generation. lastIssued tracks the highest number
	// handed out per prefix so concurrent callers get distinct numbers even
	// before the first caller's facture write lands.
	numberingMu sync.Mutex
	lastIssued  map[string]int
}

func New(repos *repository.Repositories, settingsProvider settings.Provider) *Service {
	return &Service{repos: repos, settings: settingsProvider, lastIssued: make(map[string]int)}
}

func (s *Service) Clients() *repository.ClientRepository     { return s.repos.Clients }
func (s *Service) Articles() *repository.ArticleRepository   { return s.repos.Articles }
func (s *Service) Achats() *repository.AchatRepository       { return s.repos.Achats }
func (s *Service) Stock() *repository.StockRepository        { return s.repos.Stock }
func (s *Service) Ventes() *repository.VenteRepository       { return s.repos.Ventes }
func (s *Service) Factures() *repository.FactureRepository   { return s.repos.Factures }
func (s *Service) HistoryLog() *repository.HistoryRepository { return s.repos.History }

func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.settings.Get(ctx)
}

func (s *Service) History(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryAction, error) {
	return s.repos.History.Filter(ctx, filter)
}

// ConfirmPurchase records an achat and applies its lines to the stock,
// inserting rows for unseen (ref, depot) pairs.
func (s *Service) ConfirmPurchase(ctx context.Context, req domain.ConfirmPurchaseRequest) (domain.ConfirmPurchaseResponse, error) {
	req.Fournisseur = strings.TrimSpace(req.Fournisseur)
	if req.Fournisseur == "" || len(req.Lignes) == 0 {
		return domain.ConfirmPurchaseResponse{}, fmt.Errorf("%w: fournisseur and lines are required", store.ErrInvalidEntity)
	}

	montant := 0.0
	for i := range req.Lignes {
		ligne := &req.Lignes[i]
		ligne.Ref = strings.TrimSpace(ligne.Ref)
		ligne.Depot = strings.TrimSpace(ligne.Depot)
		if ligne.Ref == "" || ligne.Depot == "" || ligne.Quantite < 1 {
			return domain.ConfirmPurchaseResponse{}, fmt.Errorf("%w: purchase line needs ref, depot and a positive quantity", store.ErrInvalidEntity)
		}
		montant += float64(ligne.Quantite) * ligne.PrixAchat
	}

	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}

	achat, err := s.repos.Achats.Create(ctx, domain.Achat{
		Fournisseur: req.Fournisseur,
		Date:        req.Date,
		Montant:     montant,
		Lignes:      req.Lignes,
	})
	if err != nil {
		return domain.ConfirmPurchaseResponse{}, err
	}

	// The stock rewrite is a separate unguarded write: a failure here leaves
	// the achat recorded without its increment, surfaced to the caller.
	if err := s.applyStockDelta(ctx, purchaseDeltas(achat.Lignes), true); err != nil {
		return domain.ConfirmPurchaseResponse{}, fmt.Errorf("achat %s recorded but stock update failed: %w", achat.ID, err)
	}

	return domain.ConfirmPurchaseResponse{Achat: *achat}, nil
}

// ConfirmSale runs the three-write confirmation behind a durable intent:
// Vente upsert, Facture snapshot, stock decrement. Stock that would be
// overdrawn rejects the sale before any write unless the settings allow
// negative stock (backorders).
func (s *Service) ConfirmSale(ctx context.Context, req domain.ConfirmSaleRequest) (domain.ConfirmSaleResponse, error) {
	if strings.TrimSpace(req.ClientID) == "" || len(req.Items) == 0 {
		return domain.ConfirmSaleResponse{}, fmt.Errorf("%w: client and items are required", store.ErrInvalidEntity)
	}
	for i := range req.Items {
		item := &req.Items[i]
		item.Ref = strings.TrimSpace(item.Ref)
		item.Depot = strings.TrimSpace(item.Depot)
		if item.Ref == "" || item.Depot == "" || item.Quantite < 1 {
			return domain.ConfirmSaleResponse{}, fmt.Errorf("%w: sale line needs ref, depot and a positive quantity", store.ErrInvalidEntity)
		}
	}

	client, err := s.repos.Clients.Get(ctx, req.ClientID)
	if err != nil {
		return domain.ConfirmSaleResponse{}, err
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return domain.ConfirmSaleResponse{}, err
	}

	if !cfg.AllowNegativeStock {
		if err := s.checkStockCover(ctx, req.Items); err != nil {
			return domain.ConfirmSaleResponse{}, err
		}
	}

	invoiceID := strings.TrimSpace(req.InvoiceID)
	if invoiceID == "" {
		invoiceID, err = s.NextInvoiceNumber(ctx, cfg.InvoicePrefix)
		if err != nil {
			return domain.ConfirmSaleResponse{}, err
		}
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}

	vente, facture := buildSaleRecords(invoiceID, req, *client, cfg)

	intent, err := s.repos.Intents.Create(ctx, domain.SaleIntent{
		SaleID:  invoiceID,
		Vente:   vente,
		Facture: facture,
		Items:   req.Items,
	})
	if err != nil {
		return domain.ConfirmSaleResponse{}, fmt.Errorf("record sale intent: %w", err)
	}

	savedVente, savedFacture, err := s.applySaleIntent(ctx, *intent, cfg.AllowNegativeStock)
	if err != nil {
		return domain.ConfirmSaleResponse{}, err
	}

	return domain.ConfirmSaleResponse{
		InvoiceID: invoiceID,
		Vente:     *savedVente,
		Facture:   *savedFacture,
	}, nil
}

// applySaleIntent executes the confirmation steps the intent has not yet
// recorded, marking each as it settles, then completes the intent. Used by
// both the live flow and crash recovery.
func (s *Service) applySaleIntent(ctx context.Context, intent domain.SaleIntent, allowNegative bool) (*domain.Vente, *domain.Facture, error) {
	savedVente := &intent.Vente
	savedFacture := &intent.Facture

	if !slices.Contains(intent.StepsDone, domain.StepVente) {
		vente, _, err := s.repos.Ventes.Upsert(ctx, intent.Vente)
		if err != nil {
			return nil, nil, fmt.Errorf("sale %s: persist vente: %w", intent.SaleID, err)
		}
		savedVente = vente
		if _, err := s.repos.Intents.MarkStep(ctx, intent.ID, domain.StepVente); err != nil {
			return nil, nil, err
		}
	}

	if !slices.Contains(intent.StepsDone, domain.StepFacture) {
		facture, err := s.repos.Factures.Snapshot(ctx, intent.Facture)
		if err != nil {
			return nil, nil, fmt.Errorf("sale %s: persist facture: %w", intent.SaleID, err)
		}
		savedFacture = facture
		if _, err := s.repos.Intents.MarkStep(ctx, intent.ID, domain.StepFacture); err != nil {
			return nil, nil, err
		}
	}

	if !slices.Contains(intent.StepsDone, domain.StepStock) {
		if err := s.applyStockDelta(ctx, saleDeltas(intent.Items), allowNegative); err != nil {
			return nil, nil, fmt.Errorf("sale %s: stock decrement: %w", intent.SaleID, err)
		}
		if _, err := s.repos.Intents.MarkStep(ctx, intent.ID, domain.StepStock); err != nil {
			return nil, nil, err
		}
	}

	if err := s.repos.Intents.Complete(ctx, intent.ID); err != nil {
		return nil, nil, err
	}
	return savedVente, savedFacture, nil
}

// Recover replays every pending sale intent from its last recorded step.
// Called once on startup, before the API starts taking writes.
func (s *Service) Recover(ctx context.Context) error {
	pending, err := s.repos.Intents.Pending(ctx)
	if err != nil {
		return err
	}
	for _, intent := range pending {
		log.Printf("[service] replaying interrupted sale %s (steps done: %v)", intent.SaleID, intent.StepsDone)
		// Replay always permits negative stock: the sale was already
		// accepted; refusing the replay would strand the vente without
		// its decrement.
		if _, _, err := s.applySaleIntent(ctx, intent, true); err != nil {
			return fmt.Errorf("replay sale %s: %w", intent.SaleID, err)
		}
	}
	return nil
}

// checkStockCover verifies that every (ref, depot) pair has enough recorded
// quantity for the aggregated sale lines.
func (s *Service) checkStockCover(ctx context.Context, items []domain.SaleLine) error {
	stock, err := s.repos.Stock.List(ctx)
	if err != nil {
		return err
	}
	available := make(map[string]int, len(stock))
	for _, row := range stock {
		available[domain.StockKey(row.Ref, row.Depot)] = row.Quantite
	}

	needed := make(map[string]int, len(items))
	for _, item := range items {
		needed[domain.StockKey(item.Ref, item.Depot)] += item.Quantite
	}
	for key, qty := range needed {
		if available[key] < qty {
			return fmt.Errorf("%w: %s (have %d, need %d)", store.ErrInsufficientStock, key, available[key], qty)
		}
	}
	return nil
}

type stockDelta struct {
	ref   string
	depot string
	qty   int
}

func purchaseDeltas(lignes []domain.LigneAchat) []stockDelta {
	deltas := make([]stockDelta, 0, len(lignes))
	for _, ligne := range lignes {
		deltas = append(deltas, stockDelta{ref: ligne.Ref, depot: ligne.Depot, qty: ligne.Quantite})
	}
	return deltas
}

func saleDeltas(items []domain.SaleLine) []stockDelta {
	deltas := make([]stockDelta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, stockDelta{ref: item.Ref, depot: item.Depot, qty: -item.Quantite})
	}
	return deltas
}

// applyStockDelta is the consistency engine: it folds the deltas into the
// stock collection keyed by (ref, depot) and rewrites it wholesale. Rows are
// inserted for unseen pairs. With allowNegative false a resulting negative
// quantity aborts the rewrite before anything is persisted.
func (s *Service) applyStockDelta(ctx context.Context, deltas []stockDelta, allowNegative bool) error {
	stock, err := s.repos.Stock.List(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(stock))
	for i, row := range stock {
		index[domain.StockKey(row.Ref, row.Depot)] = i
	}

	for _, delta := range deltas {
		key := domain.StockKey(delta.ref, delta.depot)
		if i, ok := index[key]; ok {
			stock[i].Quantite += delta.qty
			if stock[i].Quantite < 0 && !allowNegative {
				return fmt.Errorf("%w: %s would go to %d", store.ErrInsufficientStock, key, stock[i].Quantite)
			}
			continue
		}
		if delta.qty < 0 && !allowNegative {
			return fmt.Errorf("%w: no stock row for %s", store.ErrInsufficientStock, key)
		}
		stock = append(stock, domain.StockItem{
			Meta:     domain.Meta{ID: key},
			Ref:      delta.ref,
			Depot:    delta.depot,
			Quantite: delta.qty,
		})
		index[key] = len(stock) - 1
	}

	return s.repos.Stock.ReplaceAll(ctx, stock)
}

// buildSaleRecords derives the Vente row and the immutable Facture snapshot
// for one confirmation. Both carry the same invoice number as their id.
func buildSaleRecords(invoiceID string, req domain.ConfirmSaleRequest, client domain.Client, cfg domain.Settings) (domain.Vente, domain.Facture) {
	totalHT := 0.0
	totalQty := 0
	items := make([]domain.FactureItem, 0, len(req.Items))
	for _, line := range req.Items {
		montant := float64(line.Quantite) * line.PrixVente
		totalHT += montant
		totalQty += line.Quantite
		items = append(items, domain.FactureItem{
			Ref:         line.Ref,
			Designation: line.Designation,
			Quantite:    line.Quantite,
			Depot:       line.Depot,
			PrixVente:   line.PrixVente,
			MontantHT:   montant,
		})
	}

	tva := totalHT * cfg.TauxTVA
	ttc := totalHT + tva
	unitPrice := 0.0
	if totalQty > 0 {
		unitPrice = totalHT / float64(totalQty)
	}

	vente := domain.Vente{
		Meta:        domain.Meta{ID: invoiceID},
		Client:      client.RaisonSocial,
		Date:        req.Date,
		Montant:     ttc,
		PrixHT:      totalHT,
		UnitPrice:   unitPrice,
		NombreItems: totalQty,
	}

	facture := domain.Facture{
		Meta:    domain.Meta{ID: invoiceID},
		Company: cfg.Company,
		Client: domain.FactureClient{
			CodeTiers:    client.CodeTiers,
			RaisonSocial: client.RaisonSocial,
			Adresse:      client.Adresse,
			RC:           client.RC,
			NIF:          client.NIF,
			NIS:          client.NIS,
			AI:           client.AI,
		},
		Items:  items,
		Totals: domain.FactureTotals{HT: totalHT, TVA: tva, TTC: ttc, Taux: cfg.TauxTVA},
		Devise: cfg.Devise,
		Date:   req.Date,
	}

	return vente, facture
}
