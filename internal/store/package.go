package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tech-e/apiserver/types"
)

// PackageRepository handles persistence for catalog packages.
type PackageRepository struct {
	db *sql.DB
}

func NewPackageRepository(db *sql.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) List(ctx context.Context) ([]types.Package, error) {
	const query = `
		SELECT id, name, version, description, price, image_key, created_at, updated_at
		FROM packages
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	packages := make([]types.Package, 0)
	for rows.Next() {
		var pkg types.Package
		if err := rows.Scan(
			&pkg.ID,
			&pkg.Name,
			&pkg.Version,
			&pkg.Description,
			&pkg.Price,
			&pkg.ImageKey,
			&pkg.CreatedAt,
			&pkg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *PackageRepository) Get(ctx context.Context, id string) (types.Package, error) {
	if !validID(id) {
		return types.Package{}, ErrNotFound
	}
	const query = `
		SELECT id, name, version, description, price, image_key, created_at, updated_at
		FROM packages
		WHERE id = $1`
	var pkg types.Package
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pkg.ID,
		&pkg.Name,
		&pkg.Version,
		&pkg.Description,
		&pkg.Price,
		&pkg.ImageKey,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Package{}, ErrNotFound
		}
		return types.Package{}, fmt.Errorf("select package: %w", err)
	}
	return pkg, nil
}

func (r *PackageRepository) Create(ctx context.Context, pkg types.Package) (types.Package, error) {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	const query = `
		INSERT INTO packages (id, name, version, description, price, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		pkg.ID,
		pkg.Name,
		pkg.Version,
		pkg.Description,
		pkg.Price,
		pkg.ImageKey,
		pkg.CreatedAt,
		pkg.UpdatedAt,
	); err != nil {
		return types.Package{}, fmt.Errorf("insert package: %w", err)
	}
	return pkg, nil
}

func (r *PackageRepository) Update(ctx context.Context, pkg types.Package) (types.Package, error) {
	if !validID(pkg.ID) {
		return types.Package{}, ErrNotFound
	}
	pkg.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE packages
		SET name = $1,
			version = $2,
			description = $3,
			price = $4,
			image_key = $5,
			updated_at = $6
		WHERE id = $7
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		pkg.Name,
		pkg.Version,
		pkg.Description,
		pkg.Price,
		pkg.ImageKey,
		pkg.UpdatedAt,
		pkg.ID,
	).Scan(&pkg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Package{}, ErrNotFound
		}
		return types.Package{}, fmt.Errorf("update package: %w", err)
	}
	return pkg, nil
}

func (r *PackageRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM packages WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
