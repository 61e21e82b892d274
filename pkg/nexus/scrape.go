package nexus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// Game id and name appear in the head of every game page.
var (
	gameIDRE   = regexp.MustCompile(`https://staticdelivery\.nexusmods\.com/Images/games/4_3/tile_([0-9]{1,4})`)
	gameNameRE = regexp.MustCompile(`:: (.*?)"`)
)

var profileIconRE = regexp.MustCompile(
	`<img class="user-avatar" src="(https://(?:forums\.nexusmods\.com/uploads/profile/(?:photo-(?:thumb-)?|av-)[0-9]*\.|secure\.gravatar\.com/avatar/)\w+)["?]`)

const (
	// Both game page markers sit within the first 700 bytes of HTML.
	gamePageHead = 700

	// The avatar tag usually sits in the 30k bytes after the first 70k.
	iconWindowStart = 70000
	iconWindowEnd   = 100000

	maxProfilePage = 2 << 20
)

// ScrapeTarget resolves a game's numeric id and display name from its HTML
// page. Used for games missing from the bulk catalog. Returns ErrNotFound
// when the page does not carry the expected markers.
func (c *Client) ScrapeTarget(ctx context.Context, path string) (int64, string, error) {
	pageURL := c.htmlURL + "/" + url.PathEscape(path)
	body, cached := c.cache.Get(pageURL)
	if !cached {
		var err error
		body, err = c.fetchHTML(ctx, pageURL, gamePageHead)
		if err != nil {
			return 0, "", err
		}
		c.cache.Put(pageURL, body)
	}

	idMatch := gameIDRE.FindSubmatch(body)
	nameMatch := gameNameRE.FindSubmatch(body)
	if idMatch == nil || nameMatch == nil {
		return 0, "", fmt.Errorf("%w: no game info in page for %q", ErrNotFound, path)
	}

	id, err := strconv.ParseInt(string(idMatch[1]), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parsing game id: %w", err)
	}
	return id, string(nameMatch[1]), nil
}

// ScrapeProfileIconURL extracts a user's avatar URL from their profile page.
// The usual window of the page is scanned first, the full page only when the
// tag moved. Profile pages are not cached.
func (c *Client) ScrapeProfileIconURL(ctx context.Context, userID int64) (string, error) {
	body, err := c.fetchHTML(ctx, fmt.Sprintf("%s/users/%d", c.htmlURL, userID), maxProfilePage)
	if err != nil {
		return "", err
	}

	if len(body) > iconWindowStart {
		end := min(len(body), iconWindowEnd)
		if match := profileIconRE.FindSubmatch(body[iconWindowStart:end]); match != nil {
			return string(match[1]), nil
		}
	}
	if match := profileIconRE.FindSubmatch(body); match != nil {
		return string(match[1]), nil
	}
	return "", fmt.Errorf("%w: no profile icon for user %d", ErrNotFound, userID)
}

func (c *Client) fetchHTML(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

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

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}
