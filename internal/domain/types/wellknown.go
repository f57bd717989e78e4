package types

import "time"

// OSMStyle describes one map tile style advertised by a server.
type OSMStyle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// WellKnownEntry is the cached configuration for one server. It is replaced
// wholesale on every refresh.
type WellKnownEntry struct {
	Server     ServerURL     `json:"server"`
	WSURL      string        `json:"ws_url"`
	TURNURLs   []string      `json:"turn_urls"`
	OSMStyles  []OSMStyle    `json:"osm_styles"`
	AddressURL string        `json:"address_url"`
	FetchedAt  time.Time     `json:"fetched_at"`
	TTL        time.Duration `json:"ttl"`
}

// Stale reports whether the entry is older than its time-to-live at now.
func (e WellKnownEntry) Stale(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.TTL
}
