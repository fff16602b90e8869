package repository

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

type ClientRepository struct {
	col     *kv.Collection[domain.Client, *domain.Client]
	history *HistoryRepository
}

func (r *ClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	return r.col.All(ctx)
}

func (r *ClientRepository) Get(ctx context.Context, id string) (*domain.Client, error) {
	return r.col.Get(ctx, id)
}

// Create persists a client. An empty CodeTiers is generated with
// collision-avoidance against the codes already present; a caller-supplied
// code that already exists fails with ErrDuplicateKey.
func (r *ClientRepository) Create(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.RaisonSocial = strings.TrimSpace(client.RaisonSocial)
	if client.RaisonSocial == "" {
		return nil, fmt.Errorf("%w: raison sociale is required", store.ErrInvalidEntity)
	}

	if strings.TrimSpace(client.CodeTiers) == "" {
		existing, err := r.col.All(ctx)
		if err != nil {
			return nil, err
		}
		taken := make(map[string]bool, len(existing))
		for _, c := range existing {
			taken[c.CodeTiers] = true
		}
		client.CodeTiers = generateCodeTiers(taken)
	}

	created, err := r.col.CreateUnique(ctx, client, func(c domain.Client) string { return c.CodeTiers })
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryClientCreated, "Client créé",
		fmt.Sprintf("Client %s créé (%s)", created.RaisonSocial, created.CodeTiers),
		created.ID, "client")
	return created, nil
}

func (r *ClientRepository) Update(ctx context.Context, id string, apply func(*domain.Client)) (*domain.Client, error) {
	updated, err := r.col.Update(ctx, id, apply)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryClientUpdated, "Client modifié",
		fmt.Sprintf("Client %s modifié (%s)", updated.RaisonSocial, updated.CodeTiers),
		updated.ID, "client")
	return updated, nil
}

func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.col.Delete(ctx, id)
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryClientDeleted, "Client supprimé",
		fmt.Sprintf("Client %s supprimé (%s)", removed.RaisonSocial, removed.CodeTiers),
		removed.ID, "client")
	return nil
}

// ReplaceAll overwrites the table wholesale. Only the bulk import path uses it.
func (r *ClientRepository) ReplaceAll(ctx context.Context, clients []domain.Client) error {
	return r.col.ReplaceAll(ctx, clients)
}

// generateCodeTiers draws CL-prefixed six-digit codes until one avoids the
// taken set. The code is a display code, not the storage key, so a residual
// collision across processes is tolerated.
func generateCodeTiers(taken map[string]bool) string {
	for i := 0; i < 50; i++ {
		code := fmt.Sprintf("CL%06d", rand.Intn(1000000))
		if !taken[code] {
			return code
		}
	}
	return fmt.Sprintf("CL%06d", len(taken)%1000000)
}
