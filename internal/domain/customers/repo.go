package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
)

var ErrNotFound = errors.New("customers: not found")

// Repo is read-only: customer CRUD lives in the external admin system.
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, id int64) (*Customer, error) {
	const q = `SELECT id, full_name, phone, COALESCE(telegram_chat_id, 0), created_at
	           FROM customers WHERE id=$1`
	row := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, id)
	var c Customer
	if err := row.Scan(&c.ID, &c.FullName, &c.Phone, &c.TelegramChatID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ChatID(ctx context.Context, customerID int64) (int64, error) {
	c, err := r.Get(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if c.TelegramChatID == 0 {
		return 0, ErrNotFound
	}
	return c.TelegramChatID, nil
}
