package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Prior(ctx context.Context, postID string) (Prior, error) {
	rows, err := s.DB.Query(ctx, `SELECT order_key, code, quantity FROM order_records WHERE post_id=$1`, postID)
	if err != nil {
		return Prior{}, err
	}
	defer rows.Close()

	p := Prior{Keys: map[string]struct{}{}, Allocated: map[string]int{}}
	for rows.Next() {
		var k, code string
		var qty int
		if err := rows.Scan(&k, &code, &qty); err != nil {
			return Prior{}, err
		}
		p.Keys[k] = struct{}{}
		p.Allocated[code] += qty
	}
	return p, rows.Err()
}

// Commit writes one pass's accepted records in a single transaction, so a
// pass is either fully applied or not at all. Inserts use ON CONFLICT DO
// NOTHING on order_key: a record that already exists (in any status,
// including sent) is never overwritten. Rebuild deletes the post's records
// first; the delete is scoped by post_id.
func (s *Store) Commit(ctx context.Context, postID string, mode Mode, recs []OrderRecord) (added int, err error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if mode == ModeRebuild {
		if _, err := tx.Exec(ctx, `DELETE FROM order_records WHERE post_id=$1`, postID); err != nil {
			return 0, err
		}
	}

	for _, r := range recs {
		ct, err := tx.Exec(ctx, `
			INSERT INTO order_records(order_key, post_id, code, author_id, author_name,
			                          quantity, price_cents, subtotal_cents, status, comment_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (order_key) DO NOTHING
		`, r.OrderKey, r.PostID, r.Code, r.AuthorID, r.AuthorName,
			r.Quantity, r.PriceCents, r.SubtotalCents, r.Status, r.CommentID, r.CreatedAt)
		if err != nil {
			return 0, err
		}
		added += int(ct.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return added, nil
}

// Transition moves a record from one status to another. The state machine
// is checked first; the WHERE clause then makes the update race-free, so a
// record is never moved out of a state it already left.
func (s *Store) Transition(ctx context.Context, orderKey string, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE order_records SET status=$2 WHERE order_key=$1 AND status=$3
	`, orderKey, to, from)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkSent transitions pending -> sent. Returns false when the record is
// missing or already sent.
func (s *Store) MarkSent(ctx context.Context, orderKey string) (bool, error) {
	return s.Transition(ctx, orderKey, StatusPending, StatusSent)
}

func (s *Store) ListByPost(ctx context.Context, postID string) ([]OrderRecord, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT order_key, post_id, code, author_id, author_name,
		       quantity, price_cents, subtotal_cents, status, comment_id, created_at
		FROM order_records WHERE post_id=$1 ORDER BY created_at, order_key`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.OrderKey, &r.PostID, &r.Code, &r.AuthorID, &r.AuthorName,
			&r.Quantity, &r.PriceCents, &r.SubtotalCents, &r.Status, &r.CommentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
