package models

import (
	"fmt"
	"net/url"
	"time"
)

// Album is a named, owned collection of photos
type Album struct {
	ID        int64
	Name      string
	OwnerID   int64
	OwnerName string
	Public    bool
	CreatedAt time.Time
	Photos    []Photo
}

// URL is the canonical page of the album
func (a Album) URL() string {
	return fmt.Sprintf("/%s/albums/%s", url.PathEscape(a.OwnerName), url.PathEscape(a.Name))
}

// Breadcrumb is one step of the navigation trail; an empty Target marks the current page.
type Breadcrumb struct {
	Label  string
	Target string
}

// FeedEvent is pushed to live feed subscribers
type FeedEvent struct {
	Event   string `json:"event"`
	Owner   string `json:"owner,omitempty"`
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Created string `json:"created,omitempty"`
	Message string `json:"message,omitempty"`
}

// TimestampLayout is how timestamps leave the API: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
