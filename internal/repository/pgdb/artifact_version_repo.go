package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

const artifactVersionColumns = `id, version, manifest_key, dimension, products, users, status, created_at, activated_at`

// ArtifactVersionRepo - реестр опубликованных версий артефактов.
type ArtifactVersionRepo struct {
	pool Pool
	conv converter.ArtifactVersionConverter
}

func NewArtifactVersionRepo(pool Pool, conv converter.ArtifactVersionConverter) *ArtifactVersionRepo {
	return &ArtifactVersionRepo{
		pool: pool,
		conv: conv,
	}
}

// Create регистрирует новую версию в статусе pending. Требует транзакцию в контексте.
func (r *ArtifactVersionRepo) Create(ctx context.Context, version *domain.ArtifactVersion) (*domain.ArtifactVersion, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model := r.conv.ToModel(version)
	query := `
		INSERT INTO artifact_versions (
			version,
			manifest_key,
			dimension,
			products,
			users,
			status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;
	`

	if err := tx.QueryRow(ctx, query,
		model.Version,
		model.ManifestKey,
		model.Dimension,
		model.Products,
		model.Users,
		model.Status,
	).Scan(&model.ID, &model.CreatedAt); err != nil {
		if postgresDuplicate(err) {
			return nil, fmt.Errorf("%s: %w: %s", whereami.WhereAmI(), e.ErrArtifactVersionExists, version.Version)
		}

		return nil, fmt.Errorf("%s: failed to insert artifact version: %w", whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(model), nil
}

// Activate делает версию активной и переводит прежнюю активную в retired в одной транзакции.
func (r *ArtifactVersionRepo) Activate(ctx context.Context, version string) (*domain.ArtifactVersion, error) {
	var model converter.ArtifactVersionModel

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		retire := `
			UPDATE artifact_versions
			SET status = $1
			WHERE status = $2 AND version <> $3
		`
		if _, err := tx.Exec(ctx, retire, domain.ArtifactRetired, domain.ArtifactActive, version); err != nil {
			return err
		}

		activate := `
			UPDATE artifact_versions
			SET status = $1, activated_at = NOW()
			WHERE version = $2
			RETURNING ` + artifactVersionColumns

		return scanArtifactVersion(tx.QueryRow(ctx, activate, domain.ArtifactActive, version), &model)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, e.Wrap(whereami.WhereAmI(), e.NewNotFoundError("Artifact version", version))
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// GetActive возвращает активную версию или e.ErrNoActiveArtifact.
func (r *ArtifactVersionRepo) GetActive(ctx context.Context) (*domain.ArtifactVersion, error) {
	var model converter.ArtifactVersionModel
	query := `
		SELECT ` + artifactVersionColumns + `
		FROM artifact_versions
		WHERE status = $1
		ORDER BY activated_at DESC NULLS LAST
		LIMIT 1
	`

	err := scanArtifactVersion(r.pool.QueryRow(ctx, query, domain.ArtifactActive), &model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, e.ErrNoActiveArtifact
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

func scanArtifactVersion(row pgx.Row, model *converter.ArtifactVersionModel) error {
	return row.Scan(
		&model.ID,
		&model.Version,
		&model.ManifestKey,
		&model.Dimension,
		&model.Products,
		&model.Users,
		&model.Status,
		&model.CreatedAt,
		&model.ActivatedAt,
	)
}
