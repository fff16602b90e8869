package repository

import (
	"context"
	"fmt"
	"strings"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

type ArticleRepository struct {
	col     *kv.Collection[domain.Article, *domain.Article]
	history *HistoryRepository
}

func (r *ArticleRepository) List(ctx context.Context) ([]domain.Article, error) {
	return r.col.All(ctx)
}

func (r *ArticleRepository) Get(ctx context.Context, id string) (*domain.Article, error) {
	return r.col.Get(ctx, id)
}

// GetByRef scans for the article carrying the catalog reference.
func (r *ArticleRepository) GetByRef(ctx context.Context, ref string) (*domain.Article, error) {
	articles, err := r.col.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].Ref == ref {
			found := articles[i]
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: article ref %s", store.ErrNotFound, ref)
}

// Create persists an article, rejecting a ref already in the catalog.
func (r *ArticleRepository) Create(ctx context.Context, article domain.Article) (*domain.Article, error) {
	article.Ref = strings.TrimSpace(article.Ref)
	article.Designation = strings.TrimSpace(article.Designation)
	if article.Ref == "" {
		return nil, fmt.Errorf("%w: ref is required", store.ErrInvalidEntity)
	}

	created, err := r.col.CreateUnique(ctx, article, func(a domain.Article) string { return a.Ref })
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryArticleCreated, "Article créé",
		fmt.Sprintf("Article %s créé (réf %s)", created.Designation, created.Ref),
		created.ID, "article")
	return created, nil
}

func (r *ArticleRepository) Update(ctx context.Context, id string, apply func(*domain.Article)) (*domain.Article, error) {
	updated, err := r.col.Update(ctx, id, apply)
	if err != nil {
		return nil, err
	}

	r.history.logOrWarn(ctx, domain.HistoryArticleUpdated, "Article modifié",
		fmt.Sprintf("Article %s modifié (réf %s)", updated.Designation, updated.Ref),
		updated.ID, "article")
	return updated, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.col.Delete(ctx, id)
	if err != nil {
		return err
	}

	r.history.logOrWarn(ctx, domain.HistoryArticleDeleted, "Article supprimé",
		fmt.Sprintf("Article %s supprimé (réf %s)", removed.Designation, removed.Ref),
		removed.ID, "article")
	return nil
}

func (r *ArticleRepository) ReplaceAll(ctx context.Context, articles []domain.Article) error {
	return r.col.ReplaceAll(ctx, articles)
}
