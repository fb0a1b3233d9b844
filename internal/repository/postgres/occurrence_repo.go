package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

type occurrenceRepository struct {
	DB  *sql.DB
	cfg domain.RangeConfig
}

// NewOccurrenceRepository returns the occurrence store adapter. The range
// config declares which date columns range queries overlap against; an
// incomplete config panics here, at wiring time.
func NewOccurrenceRepository(db *sql.DB, cfg domain.RangeConfig) domain.OccurrenceRepository {
	return &occurrenceRepository{
		DB:  db,
		cfg: cfg.MustValidate(),
	}
}

const occurrenceColumns = `id, event_id, site_id, start_time, end_time, location, description, title, status, publish_date, expiry_date`

func scanOccurrence(row interface{ Scan(...any) error }) (*domain.Occurrence, error) {
	o := &domain.Occurrence{}
	var publishNull, expiryNull sql.NullTime
	err := row.Scan(
		&o.ID, &o.EventID, &o.SiteID, &o.StartTime, &o.EndTime,
		&o.Location, &o.Description, &o.Title, &o.Status, &publishNull, &expiryNull,
	)
	if err != nil {
		return nil, err
	}
	if publishNull.Valid {
		o.PublishDate = &publishNull.Time
	}
	if expiryNull.Valid {
		o.ExpiryDate = &expiryNull.Time
	}
	return o, nil
}

// whereBuilder accumulates WHERE conditions with positional args.
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// addVisibility restricts to published occurrences inside their publish
// window at the given instant. Privileged viewers see everything,
// including drafts.
func (b *whereBuilder) addVisibility(viewer domain.Viewer, now time.Time) {
	if viewer.Privileged {
		return
	}
	b.where(fmt.Sprintf(
		"status = %s AND (publish_date IS NULL OR publish_date <= %s) AND (expiry_date IS NULL OR expiry_date > %s)",
		b.arg(domain.StatusPublished), b.arg(now), b.arg(now),
	))
}

func (b *whereBuilder) addScope(scope domain.SiteScope) {
	if scope.Restricted() {
		b.where(fmt.Sprintf("site_id = %s", b.arg(scope.SiteID)))
	}
}

// BulkCreate inserts all occurrences in one multi-row statement, keeping
// the transaction short, and fills in the generated IDs.
func (r *occurrenceRepository) BulkCreate(ctx context.Context, occs []*domain.Occurrence) error {
	if len(occs) == 0 {
		return nil
	}
	values := make([]string, 0, len(occs))
	args := make([]any, 0, len(occs)*10)
	for i, o := range occs {
		n := i * 10
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10))
		args = append(args,
			o.EventID, o.SiteID, o.StartTime, o.EndTime, o.Location,
			o.Description, o.Title, o.Status, o.PublishDate, o.ExpiryDate,
		)
	}
	query := fmt.Sprintf(`
		INSERT INTO occurrences (event_id, site_id, start_time, end_time, location, description, title, status, publish_date, expiry_date)
		VALUES %s
		RETURNING id
	`, strings.Join(values, ", "))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	i := 0
	for rows.Next() {
		if i >= len(occs) {
			break
		}
		if err := rows.Scan(&occs[i].ID); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

func (r *occurrenceRepository) GetByID(ctx context.Context, id int64) (*domain.Occurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrences WHERE id = $1`, occurrenceColumns)
	o, err := scanOccurrence(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *occurrenceRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Occurrence, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM occurrences
		WHERE event_id = $1
		ORDER BY start_time, end_time
	`, occurrenceColumns)
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

func (r *occurrenceRepository) Save(ctx context.Context, o *domain.Occurrence) error {
	query := `
		UPDATE occurrences
		SET start_time = $1, end_time = $2, location = $3, description = $4,
		    title = $5, status = $6, publish_date = $7, expiry_date = $8
		WHERE id = $9
	`
	result, err := r.DB.ExecContext(ctx, query,
		o.StartTime, o.EndTime, o.Location, o.Description,
		o.Title, o.Status, o.PublishDate, o.ExpiryDate, o.ID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *occurrenceRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM occurrences WHERE id = $1`
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

// Upcoming returns visible occurrences starting at or after q.Start and,
// when q.End is set, no later than q.End.
func (r *occurrenceRepository) Upcoming(ctx context.Context, q domain.UpcomingQuery) ([]*domain.Occurrence, error) {
	b := &whereBuilder{}
	b.where(fmt.Sprintf("start_time >= %s", b.arg(q.Start)))
	if q.End != nil {
		b.where(fmt.Sprintf("start_time <= %s", b.arg(*q.End)))
	}
	if q.EventID != nil {
		b.where(fmt.Sprintf("event_id = %s", b.arg(*q.EventID)))
	}
	b.addVisibility(q.Viewer, q.Now)
	b.addScope(q.Scope)

	query := fmt.Sprintf(`SELECT %s FROM occurrences%s ORDER BY start_time, end_time`,
		occurrenceColumns, b.clause())
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", b.arg(q.Limit))
	}
	rows, err := r.DB.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// OverlappingDay returns visible occurrences with any overlap with the
// day [q.DayStart, q.DayEnd]: starting in it, ending in it, or spanning
// it entirely.
func (r *occurrenceRepository) OverlappingDay(ctx context.Context, q domain.DayQuery) ([]*domain.Occurrence, error) {
	b := &whereBuilder{}
	b.where(fmt.Sprintf(
		"((start_time >= %s AND start_time <= %s) OR (end_time >= %s AND end_time <= %s) OR (start_time < %s AND end_time > %s))",
		b.arg(q.DayStart), b.arg(q.DayEnd),
		b.arg(q.DayStart), b.arg(q.DayEnd),
		b.arg(q.DayStart), b.arg(q.DayEnd),
	))
	if q.EventID != nil {
		b.where(fmt.Sprintf("event_id = %s", b.arg(*q.EventID)))
	}
	b.addVisibility(q.Viewer, q.Now)
	b.addScope(q.Scope)

	query := fmt.Sprintf(`SELECT %s FROM occurrences%s ORDER BY start_time, end_time`,
		occurrenceColumns, b.clause())
	rows, err := r.DB.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// OverlappingRange returns visible occurrences overlapping [q.Start,
// q.End] inclusive on both ends: an occurrence qualifies iff its end
// column is at or after q.Start and its start column at or before q.End.
// The column pair comes from the repository's RangeConfig.
func (r *occurrenceRepository) OverlappingRange(ctx context.Context, q domain.RangeQuery) ([]*domain.Occurrence, error) {
	b := &whereBuilder{}
	b.where(fmt.Sprintf("%s >= %s", r.cfg.EndField, b.arg(q.Start)))
	b.where(fmt.Sprintf("%s <= %s", r.cfg.StartField, b.arg(q.End)))
	b.addVisibility(q.Viewer, q.Now)
	b.addScope(q.Scope)

	query := fmt.Sprintf(`SELECT %s FROM occurrences%s ORDER BY start_time, end_time`,
		occurrenceColumns, b.clause())
	rows, err := r.DB.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

func collectOccurrences(rows *sql.Rows) ([]*domain.Occurrence, error) {
	occs := make([]*domain.Occurrence, 0)
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}
