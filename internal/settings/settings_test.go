package settings

import (
	"context"
	"strings"
	"testing"
	"time"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/repository"
	"facturia/internal/store/memory"
)

func newTestService() (*Service, *repository.Repositories) {
	substrate := memory.New()
	repos := repository.New(kv.New(substrate))
	return New(substrate, repos.History), repos
}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	svc, _ := newTestService()

	cfg, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if cfg.Devise != "DA" {
		t.Fatalf("expected default devise DA, got %s", cfg.Devise)
	}
	if cfg.TauxTVA != 0.19 {
		t.Fatalf("expected default TVA 0.19, got %.2f", cfg.TauxTVA)
	}
	wantPrefix := "FV/" + time.Now().UTC().Format("06")
	if cfg.InvoicePrefix != wantPrefix {
		t.Fatalf("expected prefix %s, got %s", wantPrefix, cfg.InvoicePrefix)
	}
}

func TestUpdatePersistsAndLogs(t *testing.T) {
	svc, repos := newTestService()
	ctx := context.Background()

	updated, err := svc.Update(ctx, func(s *domain.Settings) {
		s.Devise = "EUR"
		s.TauxTVA = 0.20
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Devise != "EUR" {
		t.Fatalf("expected EUR, got %s", updated.Devise)
	}
	if updated.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped")
	}

	reread, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reread.Devise != "EUR" || reread.TauxTVA != 0.20 {
		t.Fatalf("update was not persisted: %+v", reread)
	}

	actions, err := repos.History.List(ctx)
	if err != nil {
		t.Fatalf("history read failed: %v", err)
	}
	if len(actions) != 1 || actions[0].Kind != domain.HistorySettingsUpdated {
		t.Fatalf("expected one settings_updated action, got %v", actions)
	}
}

func TestFormatAmount(t *testing.T) {
	cfg := domain.Settings{Devise: "DA"}
	if got := cfg.FormatAmount(80); got != "80.00 DA" {
		t.Fatalf("expected 80.00 DA, got %s", got)
	}
	empty := domain.Settings{}
	if got := empty.FormatAmount(1.5); !strings.HasSuffix(got, " DA") {
		t.Fatalf("expected DA fallback, got %s", got)
	}
}
