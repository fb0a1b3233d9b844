package domain

import (
	"context"
	"time"
)

// RangeConfig declares the pair of date columns a range query overlaps
// against and the formats used to parse the boundary strings. It replaces
// the per-view date-field mixin of the calendar this was ported from with
// one explicit configuration struct.
type RangeConfig struct {
	StartField  string
	EndField    string
	StartFormat string
	EndFormat   string
}

// DefaultRangeConfig queries occurrences on their start_time/end_time
// columns with YYYY-MM-DD boundaries.
func DefaultRangeConfig() RangeConfig {
	return RangeConfig{
		StartField:  "start_time",
		EndField:    "end_time",
		StartFormat: "2006-01-02",
		EndFormat:   "2006-01-02",
	}
}

// MustValidate panics when a field declaration is missing. An incomplete
// RangeConfig is a programmer error, fatal at construction rather than
// recoverable per request.
func (c RangeConfig) MustValidate() RangeConfig {
	if c.StartField == "" || c.EndField == "" {
		panic("domain: RangeConfig requires both a start field and an end field")
	}
	if c.StartFormat == "" || c.EndFormat == "" {
		panic("domain: RangeConfig requires both date formats")
	}
	return c
}

// RangeResult is a materialized, ordered range query result plus the
// distinct list of days present in it, for grid rendering.
type RangeResult struct {
	Occurrences []*Occurrence `json:"occurrences"`
	Dates       []time.Time   `json:"dates"`
}

// CalendarService parses date boundaries and issues overlap queries
// against the occurrence store.
type CalendarService interface {
	OccurrencesInRange(ctx context.Context, startStr, endStr string, viewer Viewer) (*RangeResult, error)
	MonthOccurrences(ctx context.Context, year int, month time.Month, viewer Viewer) (*RangeResult, error)
	DailyOccurrences(ctx context.Context, day time.Time, viewer Viewer) ([]*Occurrence, error)
	Upcoming(ctx context.Context, viewer Viewer, limit int) ([]*Occurrence, error)
	CombinedUpcoming(ctx context.Context, viewer Viewer, limit int) ([]*Occurrence, error)
}

// FeedItem is one entry of the calendar JSON feed. Start and End are
// ISO-8601 timestamps with an explicit UTC offset. Color fields are
// present only when a per-site or per-category color is configured.
type FeedItem struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	URL             string `json:"url"`
	Color           string `json:"color,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty"`
}

// FeedService assembles the exported feeds from range query output.
type FeedService interface {
	CalendarJSON(ctx context.Context, startStr, endStr string, viewer Viewer) ([]FeedItem, error)
	ICal(ctx context.Context, viewer Viewer) (string, error)
}
