package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads collections from a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS collections (
    slug TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    collection_name TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL,
    image TEXT NOT NULL DEFAULT '',
    preview_image TEXT NOT NULL DEFAULT '',
    creator_id TEXT NOT NULL DEFAULT '',
    creator_name TEXT NOT NULL DEFAULT '',
    creator_address TEXT NOT NULL DEFAULT '',
    creator_slug TEXT NOT NULL DEFAULT ''
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, slug string) (*Collection, error) {
	row := p.pool.QueryRow(ctx, `
SELECT slug, id, title, description, collection_name, address, image, preview_image,
       creator_id, creator_name, creator_address, creator_slug
FROM collections
WHERE slug = $1
`, normalizeSlug(slug))

	var c Collection
	err := row.Scan(&c.Slug, &c.ID, &c.Title, &c.Description, &c.CollectionName, &c.Address,
		&c.Image, &c.PreviewImage, &c.Creator.ID, &c.Creator.Name, &c.Creator.Address, &c.Creator.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (p *PostgresStore) Save(ctx context.Context, c Collection) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO collections (slug, id, title, description, collection_name, address, image, preview_image,
                         creator_id, creator_name, creator_address, creator_slug)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (slug) DO UPDATE
SET id = EXCLUDED.id,
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    collection_name = EXCLUDED.collection_name,
    address = EXCLUDED.address,
    image = EXCLUDED.image,
    preview_image = EXCLUDED.preview_image,
    creator_id = EXCLUDED.creator_id,
    creator_name = EXCLUDED.creator_name,
    creator_address = EXCLUDED.creator_address,
    creator_slug = EXCLUDED.creator_slug
`, normalizeSlug(c.Slug), c.ID, c.Title, c.Description, c.CollectionName, c.Address, c.Image, c.PreviewImage,
		c.Creator.ID, c.Creator.Name, c.Creator.Address, c.Creator.Slug)
	return err
}
