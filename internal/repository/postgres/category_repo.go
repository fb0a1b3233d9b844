package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type eventCategoryRepository struct {
	DB *sql.DB
}

func NewEventCategoryRepository(db *sql.DB) domain.EventCategoryRepository {
	return &eventCategoryRepository{
		DB: db,
	}
}

func (r *eventCategoryRepository) Create(ctx context.Context, c *domain.EventCategory) error {
	query := `
		INSERT INTO event_categories (site_id, name, description, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, c.SiteID, c.Name, c.Description, c.Color).Scan(&c.ID)
}

func (r *eventCategoryRepository) GetByID(ctx context.Context, id int64) (*domain.EventCategory, error) {
	query := `
		SELECT id, site_id, name, description, color
		FROM event_categories
		WHERE id = $1
	`
	c := &domain.EventCategory{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.SiteID, &c.Name, &c.Description, &c.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetOrCreateByName resolves a category given by name within one site,
// creating it first when missing.
func (r *eventCategoryRepository) GetOrCreateByName(ctx context.Context, siteID int64, name string) (*domain.EventCategory, error) {
	query := `
		SELECT id, site_id, name, description, color
		FROM event_categories
		WHERE site_id = $1 AND name = $2
	`
	c := &domain.EventCategory{}
	err := r.DB.QueryRowContext(ctx, query, siteID, name).Scan(&c.ID, &c.SiteID, &c.Name, &c.Description, &c.Color)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	c = &domain.EventCategory{SiteID: siteID, Name: name}
	if err := r.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *eventCategoryRepository) List(ctx context.Context, siteID int64) ([]*domain.EventCategory, error) {
	query := `
		SELECT id, site_id, name, description, color
		FROM event_categories
		WHERE site_id = $1
		ORDER BY name
	`
	rows, err := r.DB.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := make([]*domain.EventCategory, 0)
	for rows.Next() {
		c := &domain.EventCategory{}
		if err := rows.Scan(&c.ID, &c.SiteID, &c.Name, &c.Description, &c.Color); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *eventCategoryRepository) Update(ctx context.Context, c *domain.EventCategory) error {
	query := `
		UPDATE event_categories
		SET name = $1, description = $2, color = $3
		WHERE id = $4
	`
	result, err := r.DB.ExecContext(ctx, query, c.Name, c.Description, c.Color, c.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a category. Events referencing it keep existing; the
// category reference is nullified by the store (ON DELETE SET NULL).
func (r *eventCategoryRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM event_categories WHERE id = $1`
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
