// Package nexus talks to the Nexus Mods search endpoint, the bulk game
// catalog and the HTML pages that have no JSON equivalent. Search responses
// are cached by URL; see Cache.
package nexus

// ModResult is a single mod from a search response.
type ModResult struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	ModID        int64  `json:"mod_id"`
	GameID       int64  `json:"game_id"`
	GameName     string `json:"game_name"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Image        string `json:"image"`
	Downloads    int64  `json:"downloads"`
	Endorsements int64  `json:"endorsements"`
}

// PageURL returns the absolute mod page URL.
func (m ModResult) PageURL() string {
	return "https://nexusmods.com" + m.URL
}

// ThumbnailURL returns the absolute thumbnail image URL.
func (m ModResult) ThumbnailURL() string {
	return "https://staticdelivery.nexusmods.com" + m.Image
}

// SearchResponse is the decoded search endpoint payload. Query and
// IncludeAdult echo the request and are filled in by the client, not the
// upstream.
type SearchResponse struct {
	Results        []ModResult `json:"results"`
	Total          int         `json:"total"`
	Terms          []string    `json:"terms"`
	ExcludeAuthors []string    `json:"exclude_authors"`
	ExcludeTags    []string    `json:"exclude_tags"`

	Query        string `json:"-"`
	IncludeAdult bool   `json:"-"`
}

// CatalogEntry is one game from the bulk catalog dump.
type CatalogEntry struct {
	ID   int64  `json:"id"`
	Path string `json:"domain_name"`
	Name string `json:"name"`
}
