package domain

import (
	"context"
	"strings"
)

// EventCategory is a simple event classification, scoped to one site.
// Deleting a category must not delete the events referencing it; the
// reference is nullified instead.
type EventCategory struct {
	ID          int64  `json:"id"`
	SiteID      int64  `json:"site_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// ColorSet is a parsed category or site color configuration. Any field
// may be empty.
type ColorSet struct {
	Background string `json:"backgroundColor,omitempty"`
	Text       string `json:"textColor,omitempty"`
	Border     string `json:"borderColor,omitempty"`
}

// IsZero reports whether no color is configured.
func (c ColorSet) IsZero() bool {
	return c.Background == "" && c.Text == "" && c.Border == ""
}

// ParseColorSet parses a color value of 1 to 3 comma-separated parts:
// "background", "background,text" or "background,text,border". Empty
// input yields a zero ColorSet.
func ParseColorSet(s string) ColorSet {
	var out ColorSet
	for i, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			out.Background = p
		case 1:
			out.Text = p
		case 2:
			out.Border = p
		}
	}
	return out
}

// EventCategoryRepository defines the interface for category storage.
type EventCategoryRepository interface {
	Create(ctx context.Context, c *EventCategory) error
	GetByID(ctx context.Context, id int64) (*EventCategory, error)
	GetOrCreateByName(ctx context.Context, siteID int64, name string) (*EventCategory, error)
	List(ctx context.Context, siteID int64) ([]*EventCategory, error)
	Update(ctx context.Context, c *EventCategory) error
	Delete(ctx context.Context, id int64) error
}
