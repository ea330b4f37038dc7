package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Snapshot(ctx context.Context, postID string) ([]Listing, error) {
	rows, err := s.DB.Query(ctx, `SELECT code, category, name, price_cents, stock, created_at, updated_at
                                FROM catalog_listings WHERE post_id=$1 ORDER BY code`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.Code, &l.Category, &l.Name, &l.PriceCents, &l.Stock, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, postID string, l Listing) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO catalog_listings(post_id, code, category, name, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (post_id, code) DO UPDATE
		SET category=$3, name=$4, price_cents=$5, stock=$6, updated_at=now()
	`, postID, Normalize(l.Code), l.Category, l.Name, l.PriceCents, l.Stock)
	return err
}

func (s *Store) Delete(ctx context.Context, postID, code string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM catalog_listings WHERE post_id=$1 AND code=$2`, postID, Normalize(code))
	return err
}
