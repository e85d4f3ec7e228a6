// Package catalog loads the asset list from a Snapchat memories export index.
// The export is a single HTML file listing one table row per memory, each with
// a capture date, a media type, and a javascript download link.
package catalog

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// MediaKind distinguishes images from videos.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Ext returns the output file extension for the media kind.
func (k MediaKind) Ext() string {
	if k == KindVideo {
		return "mp4"
	}
	return "jpg"
}

// Asset describes one memory referenced by the export index.
// Immutable once parsed; identity is ID.
type Asset struct {
	ID         string
	CapturedAt time.Time
	Kind       MediaKind
	URL        string

	// DirectGet selects the transport route: true means a plain GET with the
	// memories route header, false means the proxy route (POST the query
	// string, GET the URL returned in the body).
	DirectGet bool

	// HasOverlay marks memories delivered as an archive with sticker/text
	// layers on top of the base media.
	HasOverlay bool
}

// Filename returns the normalized output filename:
// {YYYY-MM-DD_HH-MM-SS}_{id}.{ext}. The ID keeps names unique even when two
// assets share a capture timestamp.
func (a Asset) Filename() string {
	return fmt.Sprintf("%s_%s.%s", a.CapturedAt.Format("2006-01-02_15-04-05"), a.ID, a.Kind.Ext())
}

// assetID derives the unique asset ID from the download URL: the sid query
// parameter when present (truncated like the export's own filenames),
// otherwise a deterministic UUID over the full URL so reruns agree.
func assetID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if sid := u.Query().Get("sid"); sid != "" {
			if len(sid) > 16 {
				sid = sid[:16]
			}
			return sid
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String()[:16]
}
