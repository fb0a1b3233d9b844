package http

import (
	"net/http"
	"strconv"

	"github.com/jonge-democraten/mezzanine-fullcalendar/internal/domain"
)

// Headers carrying the viewer context, set by the multitenant frontend
// proxy. Authentication happens there; these headers are trusted input.
const (
	headerSiteID  = "X-Site-ID"
	headerPreview = "X-Preview"
)

// ViewerFromRequest derives the viewer from the proxy headers. A missing
// or malformed site header falls back to defaultSiteID. The preview
// header marks the viewer privileged, so drafts and out-of-window
// occurrences become visible.
func ViewerFromRequest(r *http.Request, defaultSiteID int64) domain.Viewer {
	siteID := defaultSiteID
	if s := r.Header.Get(headerSiteID); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			siteID = v
		}
	}
	preview := false
	switch r.Header.Get(headerPreview) {
	case "1", "true":
		preview = true
	}
	return domain.Viewer{SiteID: siteID, Privileged: preview}
}
