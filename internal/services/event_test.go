package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/recurrence"
)

func intPtr(i int) *int { return &i }

// fakeEventRepo is an in-memory EventRepository for tests.
type fakeEventRepo struct {
	byID   map[int64]*domain.Event
	nextID int64
	occs   *fakeOccurrenceRepo // when set, Save resyncs owned occurrences
	err    error               // if set, Create returns this error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[int64]*domain.Event), nextID: 1}
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	e.ID = f.nextID
	f.nextID++
	f.byID[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) GetBySlug(ctx context.Context, siteID int64, slug string) (*domain.Event, error) {
	for _, e := range f.byID {
		if e.SiteID == siteID && e.Slug == slug {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) List(ctx context.Context, siteID int64) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range f.byID {
		if e.SiteID == siteID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) Save(ctx context.Context, e *domain.Event) error {
	if _, ok := f.byID[e.ID]; !ok {
		return domain.ErrNotFound
	}
	f.byID[e.ID] = e
	if f.occs != nil {
		for _, o := range f.occs.occs {
			if o.EventID == e.ID {
				o.SyncFromEvent(e)
			}
		}
	}
	return nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeOccurrenceRepo is an in-memory OccurrenceRepository for tests. Its
// query methods apply the same visibility, scope and ordering rules as the
// real store.
type fakeOccurrenceRepo struct {
	occs      []*domain.Occurrence
	nextID    int64
	createErr error
	queryErr  error
}

func newFakeOccurrenceRepo() *fakeOccurrenceRepo {
	return &fakeOccurrenceRepo{nextID: 1}
}

func (f *fakeOccurrenceRepo) BulkCreate(ctx context.Context, occs []*domain.Occurrence) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, o := range occs {
		o.ID = f.nextID
		f.nextID++
		f.occs = append(f.occs, o)
	}
	return nil
}

func (f *fakeOccurrenceRepo) GetByID(ctx context.Context, id int64) (*domain.Occurrence, error) {
	for _, o := range f.occs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOccurrenceRepo) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Occurrence, error) {
	var out []*domain.Occurrence
	for _, o := range f.occs {
		if o.EventID == eventID {
			out = append(out, o)
		}
	}
	sortOccurrences(out)
	return out, nil
}

func (f *fakeOccurrenceRepo) Save(ctx context.Context, o *domain.Occurrence) error {
	for i, existing := range f.occs {
		if existing.ID == o.ID {
			f.occs[i] = o
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeOccurrenceRepo) Delete(ctx context.Context, id int64) error {
	for i, o := range f.occs {
		if o.ID == id {
			f.occs = append(f.occs[:i], f.occs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeOccurrenceRepo) visible(o *domain.Occurrence, viewer domain.Viewer, now time.Time, scope domain.SiteScope) bool {
	if scope.Restricted() && o.SiteID != scope.SiteID {
		return false
	}
	if viewer.Privileged {
		return true
	}
	return o.VisibleAt(now)
}

func (f *fakeOccurrenceRepo) Upcoming(ctx context.Context, q domain.UpcomingQuery) ([]*domain.Occurrence, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []*domain.Occurrence
	for _, o := range f.occs {
		if o.StartTime.Before(q.Start) {
			continue
		}
		if q.End != nil && o.StartTime.After(*q.End) {
			continue
		}
		if q.EventID != nil && o.EventID != *q.EventID {
			continue
		}
		if !f.visible(o, q.Viewer, q.Now, q.Scope) {
			continue
		}
		out = append(out, o)
	}
	sortOccurrences(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeOccurrenceRepo) OverlappingDay(ctx context.Context, q domain.DayQuery) ([]*domain.Occurrence, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	inDay := func(t time.Time) bool {
		return !t.Before(q.DayStart) && !t.After(q.DayEnd)
	}
	var out []*domain.Occurrence
	for _, o := range f.occs {
		spans := o.StartTime.Before(q.DayStart) && o.EndTime.After(q.DayEnd)
		if !inDay(o.StartTime) && !inDay(o.EndTime) && !spans {
			continue
		}
		if q.EventID != nil && o.EventID != *q.EventID {
			continue
		}
		if !f.visible(o, q.Viewer, q.Now, q.Scope) {
			continue
		}
		out = append(out, o)
	}
	sortOccurrences(out)
	return out, nil
}

func (f *fakeOccurrenceRepo) OverlappingRange(ctx context.Context, q domain.RangeQuery) ([]*domain.Occurrence, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []*domain.Occurrence
	for _, o := range f.occs {
		if o.EndTime.Before(q.Start) || o.StartTime.After(q.End) {
			continue
		}
		if !f.visible(o, q.Viewer, q.Now, q.Scope) {
			continue
		}
		out = append(out, o)
	}
	sortOccurrences(out)
	return out, nil
}

func sortOccurrences(occs []*domain.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].StartTime.Equal(occs[j].StartTime) {
			return occs[i].StartTime.Before(occs[j].StartTime)
		}
		return occs[i].EndTime.Before(occs[j].EndTime)
	})
}

// fakeCategoryRepo is an in-memory EventCategoryRepository for tests.
type fakeCategoryRepo struct {
	byID   map[int64]*domain.EventCategory
	nextID int64
	err    error
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{byID: make(map[int64]*domain.EventCategory), nextID: 1}
}

func (f *fakeCategoryRepo) Create(ctx context.Context, c *domain.EventCategory) error {
	if f.err != nil {
		return f.err
	}
	c.ID = f.nextID
	f.nextID++
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCategoryRepo) GetByID(ctx context.Context, id int64) (*domain.EventCategory, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCategoryRepo) GetOrCreateByName(ctx context.Context, siteID int64, name string) (*domain.EventCategory, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.byID {
		if c.SiteID == siteID && c.Name == name {
			return c, nil
		}
	}
	c := &domain.EventCategory{SiteID: siteID, Name: name}
	if err := f.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *fakeCategoryRepo) List(ctx context.Context, siteID int64) ([]*domain.EventCategory, error) {
	var out []*domain.EventCategory
	for _, c := range f.byID {
		if c.SiteID == siteID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCategoryRepo) Update(ctx context.Context, c *domain.EventCategory) error {
	if _, ok := f.byID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCategoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type eventServiceFixture struct {
	svc    domain.EventService
	events *fakeEventRepo
	occs   *fakeOccurrenceRepo
	cats   *fakeCategoryRepo
	clock  *clock.MockClock
	now    time.Time
}

func newEventServiceFixture(t *testing.T) *eventServiceFixture {
	t.Helper()
	now := time.Date(2023, time.March, 15, 14, 30, 0, 0, time.UTC)
	events := newFakeEventRepo()
	occs := newFakeOccurrenceRepo()
	events.occs = occs
	cats := newFakeCategoryRepo()
	mc := clock.NewMockClock(now)
	svc := NewEventService(events, occs, cats, recurrence.New(), mc, time.Hour, 2*time.Second)
	return &eventServiceFixture{svc: svc, events: events, occs: occs, cats: cats, clock: mc, now: now}
}

func TestEventService_CreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		f := newEventServiceFixture(t)

		e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID: 1,
			Title:  "Algemene Ledenvergadering",
		})
		require.NoError(t, err)
		assert.Equal(t, "algemene-ledenvergadering", e.Slug)
		assert.Equal(t, domain.StatusPublished, e.Status)
		assert.Equal(t, f.now, e.CreatedAt)

		occs, err := f.occs.ListByEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, occs, 1)
		// Start rounds the current time down to the hour; end is one
		// default duration later.
		wantStart := time.Date(2023, time.March, 15, 14, 0, 0, 0, time.UTC)
		assert.Equal(t, wantStart, occs[0].StartTime)
		assert.Equal(t, wantStart.Add(time.Hour), occs[0].EndTime)
		assert.Equal(t, "Algemene Ledenvergadering", occs[0].Title)
		assert.Equal(t, domain.StatusPublished, occs[0].Status)
	})

	t.Run("recurring rule creates all occurrences", func(t *testing.T) {
		f := newEventServiceFixture(t)

		start := time.Date(2023, time.April, 3, 9, 0, 0, 0, time.UTC)
		end := start.Add(30 * time.Minute)
		e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID:    1,
			Title:     "Standup",
			StartTime: &start,
			EndTime:   &end,
			Location:  "Room 2",
			Rule:      domain.Rule{Freq: domain.Daily, Count: intPtr(3)},
		})
		require.NoError(t, err)

		occs, err := f.occs.ListByEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, occs, 3)
		for i, o := range occs {
			assert.Equal(t, start.AddDate(0, 0, i), o.StartTime)
			assert.Equal(t, 30*time.Minute, o.EndTime.Sub(o.StartTime))
			assert.Equal(t, "Room 2", o.Location)
		}
	})

	t.Run("category resolved by name", func(t *testing.T) {
		f := newEventServiceFixture(t)

		e1, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID: 1, Title: "Borrel", CategoryName: "Social",
		})
		require.NoError(t, err)
		require.NotNil(t, e1.CategoryID)

		// Same name on the same site must reuse the category.
		e2, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID: 1, Title: "Nieuwjaarsborrel", CategoryName: "Social",
		})
		require.NoError(t, err)
		require.NotNil(t, e2.CategoryID)
		assert.Equal(t, *e1.CategoryID, *e2.CategoryID)

		// But a different site gets its own.
		e3, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID: 2, Title: "Borrel", CategoryName: "Social",
		})
		require.NoError(t, err)
		require.NotNil(t, e3.CategoryID)
		assert.NotEqual(t, *e1.CategoryID, *e3.CategoryID)
	})

	t.Run("missing title", func(t *testing.T) {
		f := newEventServiceFixture(t)

		_, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("end before start", func(t *testing.T) {
		f := newEventServiceFixture(t)

		start := time.Date(2023, time.April, 3, 9, 0, 0, 0, time.UTC)
		end := start.Add(-time.Hour)
		_, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{
			SiteID: 1, Title: "Backwards", StartTime: &start, EndTime: &end,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestEventService_SaveEvent(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Congres"})
	require.NoError(t, err)

	f.clock.AddTime(time.Hour)
	e.Title = "Najaarscongres"
	e.Status = domain.StatusDraft
	require.NoError(t, f.svc.SaveEvent(ctx, e))

	assert.Equal(t, f.now.Add(time.Hour), e.UpdatedAt)

	// The save must have pushed the new title and status onto the
	// occurrences.
	occs, err := f.occs.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "Najaarscongres", occs[0].Title)
	assert.Equal(t, domain.StatusDraft, occs[0].Status)

	t.Run("missing title", func(t *testing.T) {
		e.Title = ""
		err := f.svc.SaveEvent(ctx, e)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestEventService_AddOccurrences(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Training"})
	require.NoError(t, err)

	start := time.Date(2023, time.May, 1, 19, 0, 0, 0, time.UTC)
	until := time.Date(2023, time.May, 22, 19, 0, 0, 0, time.UTC)
	added, err := f.svc.AddOccurrences(ctx, e, start, start.Add(2*time.Hour),
		domain.Rule{Freq: domain.Weekly, Until: &until})
	require.NoError(t, err)
	assert.Len(t, added, 4)

	occs, err := f.occs.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, occs, 5) // the create's single occurrence plus four added
}

func TestEventService_NextOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	viewer := domain.Viewer{SiteID: 1}

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Lezing"})
	require.NoError(t, err)

	start := f.now.Add(48 * time.Hour)
	_, err = f.svc.AddOccurrences(ctx, e, start, start.Add(time.Hour),
		domain.Rule{Freq: domain.Daily, Count: intPtr(2)})
	require.NoError(t, err)

	next, err := f.svc.NextOccurrence(ctx, e, viewer)
	require.NoError(t, err)
	require.NotNil(t, next)
	// The create-time occurrence starts at 14:00, before now; the first
	// added one is the next.
	assert.Equal(t, start, next.StartTime)

	upcoming, err := f.svc.UpcomingOccurrences(ctx, e, viewer)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)

	t.Run("none upcoming", func(t *testing.T) {
		f.clock.AddTime(30 * 24 * time.Hour)
		next, err := f.svc.NextOccurrence(ctx, e, viewer)
		require.NoError(t, err)
		assert.Nil(t, next)
	})
}

func TestEventService_DailyOccurrences(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	viewer := domain.Viewer{SiteID: 1}

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Hackathon"})
	require.NoError(t, err)

	day := time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC)
	start := day.Add(10 * time.Hour)
	_, err = f.svc.AddOccurrences(ctx, e, start, start.Add(8*time.Hour), domain.Rule{})
	require.NoError(t, err)

	got, err := f.svc.DailyOccurrences(ctx, e, day.Add(15*time.Hour), viewer)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, start, got[0].StartTime)

	got, err = f.svc.DailyOccurrences(ctx, e, day.AddDate(0, 0, 1), viewer)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventService_GetOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)

	e1, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "A"})
	require.NoError(t, err)
	e2, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "B"})
	require.NoError(t, err)

	occs, err := f.occs.ListByEvent(ctx, e1.ID)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	got, err := f.svc.GetOccurrence(ctx, e1.ID, occs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, occs[0].ID, got.ID)

	// The occurrence does not belong to e2.
	_, err = f.svc.GetOccurrence(ctx, e2.ID, occs[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventService_SaveOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Weekend"})
	require.NoError(t, err)
	occs, err := f.occs.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	o := occs[0]
	o.Description = "dag 1"
	o.Title = "stale"
	require.NoError(t, f.svc.SaveOccurrence(ctx, o))
	// The denormalized title is recomposed from the parent, never taken
	// from the caller.
	assert.Equal(t, "Weekend (dag 1)", o.Title)

	t.Run("invalid interval", func(t *testing.T) {
		o.EndTime = o.StartTime.Add(-time.Minute)
		err := f.svc.SaveOccurrence(ctx, o)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestEventService_DeleteOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)

	e, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "Workshop"})
	require.NoError(t, err)
	occs, err := f.occs.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	require.NoError(t, f.svc.DeleteOccurrence(ctx, e.ID, occs[0].ID))
	remaining, err := f.occs.ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	err = f.svc.DeleteOccurrence(ctx, e.ID, occs[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventService_CreateEvent_RepoError(t *testing.T) {
	ctx := context.Background()
	f := newEventServiceFixture(t)
	f.events.err = errors.New("db down")

	_, err := f.svc.CreateEvent(ctx, domain.CreateEventInput{SiteID: 1, Title: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create event")
}
