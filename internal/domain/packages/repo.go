package packages

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
)

var ErrNotFound = errors.New("packages: definition not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, id int64) (*Definition, error) {
	const q = `SELECT id, name, price, valid_days, created_at
	           FROM package_definitions WHERE id=$1`
	row := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, id)
	var d Definition
	if err := row.Scan(&d.ID, &d.Name, &d.Price, &d.ValidDays, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repo) Items(ctx context.Context, definitionID int64) ([]Item, error) {
	const q = `SELECT id, package_definition_id, service_type_id, session_count, position
	           FROM package_items
	           WHERE package_definition_id=$1
	           ORDER BY position, id`
	rows, err := db.ExecutorFrom(ctx, r.pool).Query(ctx, q, definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DefinitionID, &it.ServiceTypeID, &it.SessionCount, &it.Position); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
