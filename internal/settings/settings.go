// Package settings persists the process-wide configuration (currency, tax
// rate, invoice prefix) in its own table. The provider is constructed and
// passed in explicitly so tests can substitute a fixed value.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"facturia/internal/domain"
	"facturia/internal/repository"
	"facturia/internal/store"
)

const table = "settings"

// Provider exposes the current settings to the service layer.
type Provider interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// Static is a fixed-value provider for tests.
type Static struct {
	Settings domain.Settings
}

func (s Static) Get(_ context.Context) (domain.Settings, error) {
	return s.Settings, nil
}

// Service is the substrate-backed provider. Updates append a history action.
type Service struct {
	substrate store.Substrate
	history   *repository.HistoryRepository
}

func New(substrate store.Substrate, history *repository.HistoryRepository) *Service {
	return &Service{substrate: substrate, history: history}
}

// Defaults returns the settings used before any were saved.
func Defaults() domain.Settings {
	return domain.Settings{
		Devise:        "DA",
		TauxTVA:       0.19,
		InvoicePrefix: "FV/" + time.Now().UTC().Format("06"),
	}
}

func (s *Service) Get(ctx context.Context) (domain.Settings, error) {
	payload, ok, err := s.substrate.Get(ctx, table)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if !ok || len(payload) == 0 {
		return Defaults(), nil
	}

	// Best-effort field merge: fields absent from the stored payload keep
	// their defaults, so older payloads survive new fields.
	current := Defaults()
	if err := json.Unmarshal(payload, &current); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return current, nil
}

func (s *Service) Update(ctx context.Context, apply func(*domain.Settings)) (domain.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	apply(&current)
	current.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(current)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.substrate.Set(ctx, table, payload); err != nil {
		return domain.Settings{}, fmt.Errorf("write settings: %w", err)
	}

	if s.history != nil {
		if _, err := s.history.Log(ctx, domain.HistorySettingsUpdated, "Paramètres modifiés",
			fmt.Sprintf("Devise %s, TVA %.2f, préfixe %s", current.Devise, current.TauxTVA, current.InvoicePrefix),
			table, "settings", nil); err != nil {
			log.Printf("[settings] WARN: failed to record settings update: %v", err)
		}
	}
	return current, nil
}
