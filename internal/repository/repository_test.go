package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
	"facturia/internal/store/memory"
)

func newTestRepos() *Repositories {
	return New(kv.New(memory.New()))
}

func TestClientCreateGeneratesCodeTiers(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	created, err := repos.Clients.Create(ctx, domain.Client{RaisonSocial: "ACME"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(created.CodeTiers, "CL") || len(created.CodeTiers) != 8 {
		t.Fatalf("expected generated CLnnnnnn code, got %q", created.CodeTiers)
	}
}

func TestClientCreateRejectsDuplicateCodeTiers(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	if _, err := repos.Clients.Create(ctx, domain.Client{RaisonSocial: "ACME", CodeTiers: "CL000001"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := repos.Clients.Create(ctx, domain.Client{RaisonSocial: "Other", CodeTiers: "CL000001"})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	clients, err := repos.Clients.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("rejected create mutated the table: %d rows", len(clients))
	}
}

func TestClientCreateRequiresRaisonSocial(t *testing.T) {
	repos := newTestRepos()

	_, err := repos.Clients.Create(context.Background(), domain.Client{RaisonSocial: "  "})
	if !errors.Is(err, store.ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestArticleCreateRejectsDuplicateRef(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	if _, err := repos.Articles.Create(ctx, domain.Article{Ref: "A1", Designation: "Un"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := repos.Articles.Create(ctx, domain.Article{Ref: "A1", Designation: "Deux"})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEveryMutationAppendsOneHistoryAction(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	client, err := repos.Clients.Create(ctx, domain.Client{RaisonSocial: "ACME"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repos.Clients.Update(ctx, client.ID, func(c *domain.Client) { c.Tel = "0555" }); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := repos.Clients.Delete(ctx, client.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	actions, err := repos.History.List(ctx)
	if err != nil {
		t.Fatalf("history read failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 history actions, got %d", len(actions))
	}
	wantKinds := []domain.HistoryKind{
		domain.HistoryClientCreated,
		domain.HistoryClientUpdated,
		domain.HistoryClientDeleted,
	}
	for i, want := range wantKinds {
		if actions[i].Kind != want {
			t.Fatalf("action %d: expected %s, got %s", i, want, actions[i].Kind)
		}
		if actions[i].EntityID != client.ID {
			t.Fatalf("action %d points at %s, expected %s", i, actions[i].EntityID, client.ID)
		}
	}
}

func TestReplaceAllLogsNothing(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	err := repos.Stock.ReplaceAll(ctx, []domain.StockItem{
		{Ref: "A1", Depot: "Main", Quantite: 5},
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	actions, err := repos.History.List(ctx)
	if err != nil {
		t.Fatalf("history read failed: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("bulk rewrite logged %d actions", len(actions))
	}
}

func TestStockReplaceAllNormalizesIDs(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	err := repos.Stock.ReplaceAll(ctx, []domain.StockItem{
		{Ref: "A1", Depot: "Main", Quantite: 5},
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	item, err := repos.Stock.Get(ctx, "A1", "Main")
	if err != nil {
		t.Fatalf("keyed lookup failed after replace: %v", err)
	}
	if item.ID != domain.StockKey("A1", "Main") {
		t.Fatalf("expected composite id, got %s", item.ID)
	}
}

func TestStockGetMissingPair(t *testing.T) {
	repos := newTestRepos()

	_, err := repos.Stock.Get(context.Background(), "A1", "Nowhere")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVenteUpsertLogsCreateThenUpdate(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	vente := domain.Vente{Meta: domain.Meta{ID: "FV/25-0001"}, Client: "ACME", Montant: 357}
	if _, _, err := repos.Ventes.Upsert(ctx, vente); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	vente.Montant = 400
	if _, _, err := repos.Ventes.Upsert(ctx, vente); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	actions, err := repos.History.List(ctx)
	if err != nil {
		t.Fatalf("history read failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind != domain.HistoryVenteCreated || actions[1].Kind != domain.HistoryVenteUpdated {
		t.Fatalf("expected created then updated, got %s then %s", actions[0].Kind, actions[1].Kind)
	}
}

func TestFactureSnapshotLogsNothing(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	_, err := repos.Factures.Snapshot(ctx, domain.Facture{Meta: domain.Meta{ID: "FV/25-0001"}})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	actions, err := repos.History.List(ctx)
	if err != nil {
		t.Fatalf("history read failed: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("snapshot logged %d actions", len(actions))
	}
}

func TestHistoryFilter(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	if _, err := repos.Clients.Create(ctx, domain.Client{RaisonSocial: "ACME"}); err != nil {
		t.Fatalf("create client failed: %v", err)
	}
	if _, err := repos.Articles.Create(ctx, domain.Article{Ref: "A1"}); err != nil {
		t.Fatalf("create article failed: %v", err)
	}

	byKind, err := repos.History.Filter(ctx, domain.HistoryFilter{
		Kinds: []domain.HistoryKind{domain.HistoryClientCreated},
	})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(byKind) != 1 || byKind[0].Kind != domain.HistoryClientCreated {
		t.Fatalf("kind filter returned %d actions", len(byKind))
	}

	byType, err := repos.History.Filter(ctx, domain.HistoryFilter{EntityType: "article"})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(byType) != 1 || byType[0].EntityType != "article" {
		t.Fatalf("entity type filter returned %d actions", len(byType))
	}

	future, err := repos.History.Filter(ctx, domain.HistoryFilter{
		From: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("future window matched %d actions", len(future))
	}
}

func TestIntentMarkStepIsIdempotent(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	intent, err := repos.Intents.Create(ctx, domain.SaleIntent{SaleID: "FV/25-0001"})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := repos.Intents.MarkStep(ctx, intent.ID, domain.StepVente); err != nil {
			t.Fatalf("mark step failed: %v", err)
		}
	}

	got, err := repos.Intents.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one pending intent, got %d", len(got))
	}
	if len(got[0].StepsDone) != 1 {
		t.Fatalf("expected one recorded step, got %v", got[0].StepsDone)
	}
}

func TestIntentCompleteRemovesFromPending(t *testing.T) {
	repos := newTestRepos()
	ctx := context.Background()

	intent, err := repos.Intents.Create(ctx, domain.SaleIntent{SaleID: "FV/25-0001"})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if err := repos.Intents.Complete(ctx, intent.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	pending, err := repos.Intents.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("completed intent still pending")
	}
}
