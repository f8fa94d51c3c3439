package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-access-gate/shared"
)

// ErrNotFound is returned when no store has the requested id.
var ErrNotFound = errors.New("store not found")

// Publisher receives every store record after a successful write.
type Publisher interface {
	Publish(ctx context.Context, rec *shared.StoreRecord) error
}

// Repository is the PostgreSQL-backed store record store. Writes are plain
// single-statement updates; the two status transitions are conditional on the
// current status so a stale reader cannot overwrite a newer decision.
type Repository struct {
	db     *sql.DB
	feed   Publisher
	logger *zap.Logger
}

// NewRepository returns a repository publishing changes to feed. feed may be nil.
func NewRepository(db *sql.DB, feed Publisher, logger *zap.Logger) *Repository {
	return &Repository{db: db, feed: feed, logger: logger}
}

const selectStore = `SELECT id, name, owner_email, subscription_status, is_subscription_active,
	created_at, subscription_end_date, has_created_category, product_uploads, views
	FROM stores WHERE id = $1`

// Get reads one store record.
func (r *Repository) Get(ctx context.Context, id string) (*shared.StoreRecord, error) {
	var (
		rec    shared.StoreRecord
		status string
		end    sql.NullTime
		tasks  shared.OnboardingTasks
	)
	err := r.db.QueryRowContext(ctx, selectStore, id).Scan(
		&rec.ID, &rec.Name, &rec.OwnerEmail, &status, &rec.IsSubscriptionActive,
		&rec.CreatedAt, &end, &tasks.HasCreatedCategory, &tasks.ProductUploads, &tasks.Views,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", id, err)
	}

	rec.SubscriptionStatus = shared.SubscriptionStatus(status)
	if end.Valid {
		t := end.Time
		rec.SubscriptionEndDate = &t
	}
	rec.OnboardingTasks = &tasks
	return &rec, nil
}

// Create inserts a new store. Stores always start as prospects.
func (r *Repository) Create(ctx context.Context, rec *shared.StoreRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, name, owner_email, subscription_status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Name, rec.OwnerEmail, string(shared.StatusProspect), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create store %s: %w", rec.ID, err)
	}
	r.publish(ctx, rec.ID)
	return nil
}

// LockIfStatus sets the status to locked only while the store still has the
// expected status and no active subscription. It reports whether it wrote.
func (r *Repository) LockIfStatus(ctx context.Context, id string, expected shared.SubscriptionStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stores SET subscription_status = $1
		WHERE id = $2 AND subscription_status = $3 AND is_subscription_active = FALSE`,
		string(shared.StatusLocked), id, string(expected),
	)
	return r.conditional(ctx, id, "lock", res, err)
}

// StartTrial moves a prospect to trial ending at endDate. It reports whether
// it wrote.
func (r *Repository) StartTrial(ctx context.Context, id string, endDate time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stores SET subscription_status = $1, subscription_end_date = $2
		WHERE id = $3 AND subscription_status = $4`,
		string(shared.StatusTrial), endDate, id, string(shared.StatusProspect),
	)
	return r.conditional(ctx, id, "start trial", res, err)
}

func (r *Repository) conditional(ctx context.Context, id, op string, res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("failed to %s store %s: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to %s store %s: %w", op, id, err)
	}
	if n == 0 {
		return false, nil
	}
	r.publish(ctx, id)
	return true, nil
}

// MarkCategoryCreated sets onboardingTasks.hasCreatedCategory.
func (r *Repository) MarkCategoryCreated(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE stores SET has_created_category = TRUE WHERE id = $1`)
}

// IncrementProductUploads adds one to onboardingTasks.productUploads.
func (r *Repository) IncrementProductUploads(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE stores SET product_uploads = product_uploads + 1 WHERE id = $1`)
}

// IncrementViews adds one to onboardingTasks.views.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE stores SET views = views + 1 WHERE id = $1`)
}

func (r *Repository) exec(ctx context.Context, id, query string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update store %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update store %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.publish(ctx, id)
	return nil
}

// publish pushes the current record to the change feed. The write already
// succeeded, so failures are logged and dropped.
func (r *Repository) publish(ctx context.Context, id string) {
	if r.feed == nil {
		return
	}
	rec, err := r.Get(ctx, id)
	if err != nil {
		r.logger.Warn("Failed to re-read store for change feed", zap.String("storeId", id), zap.Error(err))
		return
	}
	if err := r.feed.Publish(ctx, rec); err != nil {
		r.logger.Warn("Failed to publish store change", zap.String("storeId", id), zap.Error(err))
	}
}
