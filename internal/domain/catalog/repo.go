package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
)

var ErrNotFound = errors.New("catalog: service type not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, id int64) (*ServiceType, error) {
	const q = `SELECT id, name, display_order, created_at
	           FROM service_types WHERE id=$1`
	row := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, id)
	var st ServiceType
	if err := row.Scan(&st.ID, &st.Name, &st.DisplayOrder, &st.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (r *Repo) List(ctx context.Context) ([]ServiceType, error) {
	const q = `SELECT id, name, display_order, created_at
	           FROM service_types ORDER BY display_order, name`
	rows, err := db.ExecutorFrom(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		var st ServiceType
		if err := rows.Scan(&st.ID, &st.Name, &st.DisplayOrder, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// IDsByName returns a lowercase name -> id map, used to resolve the
// substitution table from config into service type IDs at startup.
func (r *Repo) IDsByName(ctx context.Context) (map[string]int64, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(list))
	for _, st := range list {
		m[strings.ToLower(st.Name)] = st.ID
	}
	return m, nil
}
