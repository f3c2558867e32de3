package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore keeps each order as a jsonb document keyed by id, with the
// columns the list filters need. Update takes a row lock (FOR UPDATE) so the
// request path and the payment consumer cannot interleave on the same order.
type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orders (
  id         text PRIMARY KEY,
  user_id    text NOT NULL,
  status     text NOT NULL,
  created_at timestamptz NOT NULL,
  payload    jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders(user_id);
`)
	return errors.Wrap(err, "init orders schema")
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "marshal order")
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, created_at, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.UserID, string(o.Status), o.CreatedAt, payload)
	return errors.Wrap(err, "insert order")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	var payload []byte
	err := s.DB.QueryRow(ctx, `SELECT payload FROM orders WHERE id=$1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	var o Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, errors.Wrap(err, "decode order payload")
	}
	return &o, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, mutate func(*Order) error) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin update")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock order")
	}

	var o Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, errors.Wrap(err, "decode order payload")
	}
	if err := mutate(&o); err != nil {
		return nil, err // rollback via defer; row keeps its prior state
	}

	next, err := json.Marshal(&o)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order")
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, payload=$3 WHERE id=$1`,
		id, string(o.Status), next); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit update")
	}
	return &o, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	q := `SELECT payload FROM orders`
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY created_at"

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		var o Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, errors.Wrap(err, "decode order payload")
		}
		out = append(out, &o)
	}
	return out, errors.Wrap(rows.Err(), "list orders")
}
