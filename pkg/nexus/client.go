package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modseek/modseek/pkg/config"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/query"
)

const (
	defaultSearchURL  = "https://search.nexusmods.com/mods"
	defaultCatalogURL = "https://data.nexusmods.com/file/nexus-data/games.json"
	defaultHTMLURL    = "https://www.nexusmods.com"

	// DefaultAvatarURL is used when no profile icon can be found for an author.
	DefaultAvatarURL = "https://www.nexusmods.com/assets/images/default/avatar.png"
)

// Forum avatar URL patterns, tried in order before falling back to
// DefaultAvatarURL.
var iconURLPatterns = []string{
	"https://forums.nexusmods.com/uploads/profile/photo-thumb-%d.jpg",
	"https://forums.nexusmods.com/uploads/profile/photo-%d.jpg",
	"https://forums.nexusmods.com/uploads/av-%d.jpg",
	"https://forums.nexusmods.com/uploads/profile/photo-thumb-%d.png",
	"https://forums.nexusmods.com/uploads/profile/photo-%d.png",
	"https://forums.nexusmods.com/uploads/av-%d.png",
}

// Client queries the search endpoint, the bulk catalog and the HTML pages
// used for scraping. Every call goes through the URL-keyed cache except
// profile-page requests; search pages that report zero results are never
// retained.
type Client struct {
	searchURL  string
	catalogURL string
	htmlURL    string

	httpClient *http.Client
	cache      *Cache
	userAgent  string
	timeout    time.Duration
	logger     *log.Logger
}

// NewClient creates a client from the application configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		searchURL:  defaultSearchURL,
		catalogURL: defaultCatalogURL,
		htmlURL:    defaultHTMLURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout.Duration},
		cache:      NewCache(cfg.Cache),
		userAgent:  cfg.UserAgent(),
		timeout:    cfg.RequestTimeout.Duration,
		logger:     log.ForService("nexus"),
	}
}

// Cache exposes the response cache, mainly for inspection in the CLI.
func (c *Client) Cache() *Cache {
	return c.cache
}

// SearchMods searches one game for a query. The query is normalized to the
// comma-separated terms format the endpoint expects. A non-200 response is
// returned as *UpstreamError.
func (c *Client) SearchMods(ctx context.Context, rawQuery string, gameID int64, includeAdult bool) (*SearchResponse, error) {
	return c.search(ctx, rawQuery, gameID, includeAdult, nil)
}

func (c *Client) search(ctx context.Context, rawQuery string, gameID int64, includeAdult bool, extra url.Values) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("terms", query.Normalize(rawQuery))
	params.Set("game_id", strconv.FormatInt(gameID, 10))
	params.Set("include_adult", strconv.FormatBool(includeAdult))
	params.Set("timeout", strconv.FormatInt(c.timeout.Milliseconds(), 10))
	for key, values := range extra {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	searchURL := c.searchURL + "?" + params.Encode()

	body, cached := c.cache.Get(searchURL)
	if !cached {
		var err error
		body, err = c.fetch(ctx, searchURL, "application/json")
		if err != nil {
			return nil, err
		}
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		c.cache.Delete(searchURL)
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	response.Query = rawQuery
	response.IncludeAdult = includeAdult

	if !cached {
		if response.Total == 0 {
			// Empty pages are not worth a cache slot and would otherwise
			// hide mods published within the TTL.
			c.cache.Delete(searchURL)
		} else {
			c.cache.Put(searchURL, body)
		}
	}
	return &response, nil
}

// CheckAdult reports whether the first result of a response is adult-only.
// The upstream does not flag results, so the same title is searched again
// with adult content excluded; a changed first result means the mod was
// filtered out. Errors count as adult.
func (c *Client) CheckAdult(ctx context.Context, response *SearchResponse) bool {
	if len(response.Results) == 0 {
		return false
	}
	mod := response.Results[0]

	extra := url.Values{}
	extra.Set("exclude_authors", strings.Join(response.ExcludeAuthors, ","))
	extra.Set("exclude_tags", strings.Join(response.ExcludeTags, ","))

	check, err := c.search(ctx, html.UnescapeString(mod.Name), mod.GameID, false, extra)
	if err != nil || len(check.Results) == 0 {
		return true
	}
	return check.Results[0].ModID != mod.ModID
}

// AllTargets fetches the bulk game catalog. The dump is served from a plain
// file host and fails more often than the API proper; callers should treat
// errors as "no update".
func (c *Client) AllTargets(ctx context.Context) ([]CatalogEntry, error) {
	body, cached := c.cache.Get(c.catalogURL)
	if !cached {
		var err error
		body, err = c.fetch(ctx, c.catalogURL, "application/json")
		if err != nil {
			return nil, err
		}
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		c.cache.Delete(c.catalogURL)
		return nil, fmt.Errorf("decoding game catalog: %w", err)
	}
	if !cached {
		c.cache.Put(c.catalogURL, body)
	}
	return entries, nil
}

// ProfileIconURL resolves an author's avatar. The profile page scrape is
// tried first, then the known forum URL patterns, then the default avatar.
// The returned URL is always usable.
func (c *Client) ProfileIconURL(ctx context.Context, userID int64) string {
	if iconURL, err := c.ScrapeProfileIconURL(ctx, userID); err == nil {
		return iconURL
	}

	for _, pattern := range iconURLPatterns {
		iconURL := fmt.Sprintf(pattern, userID)
		if c.urlExists(ctx, iconURL) {
			return iconURL
		}
	}
	return DefaultAvatarURL
}

func (c *Client) urlExists(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) fetch(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			URL:     rawURL,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
