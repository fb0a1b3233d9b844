package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `id, site_id, title, slug, content, status, publish_date, expiry_date, category_id, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var publishNull, expiryNull sql.NullTime
	var categoryNull sql.NullInt64
	err := row.Scan(
		&e.ID, &e.SiteID, &e.Title, &e.Slug, &e.Content, &e.Status,
		&publishNull, &expiryNull, &categoryNull, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishNull.Valid {
		e.PublishDate = &publishNull.Time
	}
	if expiryNull.Valid {
		e.ExpiryDate = &expiryNull.Time
	}
	if categoryNull.Valid {
		e.CategoryID = &categoryNull.Int64
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (site_id, title, slug, content, status, publish_date, expiry_date, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		e.SiteID, e.Title, e.Slug, e.Content, e.Status,
		e.PublishDate, e.ExpiryDate, e.CategoryID, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: slug %q already in use on site %d", domain.ErrInvalidInput, e.Slug, e.SiteID)
	}
	return err
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) GetBySlug(ctx context.Context, siteID int64, slug string) (*domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE site_id = $1 AND slug = $2`, eventColumns)
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, siteID, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) List(ctx context.Context, siteID int64) ([]*domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE site_id = $1 ORDER BY title`, eventColumns)
	rows, err := r.DB.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Save persists the event fields and rewrites the denormalized
// title/status/publish window on every owned occurrence. Both updates run
// in one transaction: a failed resync rolls back the event update too, so
// readers never observe a half-synced event.
func (r *eventRepository) Save(ctx context.Context, e *domain.Event) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE events
		SET title = $1, slug = $2, content = $3, status = $4,
		    publish_date = $5, expiry_date = $6, category_id = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := tx.ExecContext(ctx, query,
		e.Title, e.Slug, e.Content, e.Status,
		e.PublishDate, e.ExpiryDate, e.CategoryID, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	if err := syncOccurrences(ctx, tx, e); err != nil {
		return fmt.Errorf("sync occurrences: %w", err)
	}

	return tx.Commit()
}

// syncOccurrences is the explicit projection step of an event save: it
// recomposes each occurrence title from the event title and the
// occurrence's own description, and copies status and publish window.
func syncOccurrences(ctx context.Context, tx *sql.Tx, e *domain.Event) error {
	query := `
		UPDATE occurrences
		SET title = CASE WHEN description <> '' THEN $1 || ' (' || description || ')' ELSE $1 END,
		    status = $2, publish_date = $3, expiry_date = $4
		WHERE event_id = $5
	`
	_, err := tx.ExecContext(ctx, query, e.Title, e.Status, e.PublishDate, e.ExpiryDate, e.ID)
	return err
}

// Delete removes an event; its occurrences go with it (ON DELETE CASCADE).
func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
