package expiry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/wellness-ledger/internal/infra/db"
	"github.com/Spok95/wellness-ledger/internal/infra/notify"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

var _ Store = (*Repo)(nil)

func (r *Repo) DuePurchases(ctx context.Context) ([]DuePurchase, error) {
	const q = `SELECT p.id, p.customer_id, d.name, p.end_date
	           FROM package_purchases p
	           JOIN package_definitions d ON d.id = p.package_definition_id
	           WHERE p.status='active'
	           ORDER BY p.id`
	rows, err := db.ExecutorFrom(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DuePurchase
	for rows.Next() {
		var p DuePurchase
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.DefinitionName, &p.EndDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkExpired reports whether this call performed the transition; the
// transition is terminal, so a repeated call is a no-op.
func (r *Repo) MarkExpired(ctx context.Context, purchaseID int64) (bool, error) {
	const q = `UPDATE package_purchases SET status='expired', updated_at=NOW()
	           WHERE id=$1 AND status='active'`
	tag, err := db.ExecutorFrom(ctx, r.pool).Exec(ctx, q, purchaseID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) HasRecord(ctx context.Context, purchaseID int64, kind notify.Kind) (bool, error) {
	const q = `SELECT EXISTS (
	             SELECT 1 FROM notification_records WHERE purchase_id=$1 AND kind=$2
	           )`
	var ok bool
	err := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, purchaseID, string(kind)).Scan(&ok)
	return ok, err
}

func (r *Repo) InsertRecord(ctx context.Context, purchaseID int64, kind notify.Kind, sentAt time.Time) (*Record, error) {
	const q = `INSERT INTO notification_records (purchase_id, kind, sent_at, delivery_status)
	           VALUES ($1,$2,$3,'pending')
	           RETURNING id, purchase_id, kind, sent_at, delivery_status, COALESCE(provider_ref,'')`
	row := db.ExecutorFrom(ctx, r.pool).QueryRow(ctx, q, purchaseID, string(kind), sentAt)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PurchaseID, &rec.Kind, &rec.SentAt, &rec.DeliveryStatus, &rec.ProviderRef); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) SetDeliveryStatus(ctx context.Context, recordID int64, status DeliveryStatus, providerRef string) error {
	const q = `UPDATE notification_records
	           SET delivery_status=$2, provider_ref=NULLIF($3,'')
	           WHERE id=$1`
	_, err := db.ExecutorFrom(ctx, r.pool).Exec(ctx, q, recordID, string(status), providerRef)
	return err
}
