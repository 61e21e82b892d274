// Package present turns search outcomes into result batches, the platform
// neutral shape of a rich chat embed. A batch carries at most 25 fields, so
// the number of queries answered per batch depends on how many targets each
// query fans out to.
package present

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/nexus"
)

// MaxFields is the upstream platform's per-embed field limit.
const MaxFields = 25

// BrandColor is the orange used for all result batches.
const BrandColor = 14323253

// ErrTooManyQueries rejects a message whose queries would not fit the
// configured number of batches. Nothing is searched in that case.
var ErrTooManyQueries = errors.New("too many queries in message")

var whitespaceRE = regexp.MustCompile(`\s+`)

// Author is the byline of a batch.
type Author struct {
	Name    string
	URL     string
	IconURL string
}

// Footer is the bottom line of a batch.
type Footer struct {
	Text    string
	IconURL string
}

// Field is one name/value pair of a batch.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Batch is one outgoing result message.
type Batch struct {
	Color       int
	Title       string
	URL         string
	Description string
	Thumbnail   string
	Author      Author
	Footer      Footer
	Fields      []Field
}

// AddField appends a field to the batch.
func (b *Batch) AddField(name, value string, inline bool) {
	b.Fields = append(b.Fields, Field{Name: name, Value: value, Inline: inline})
}

// AdultCheckFunc reports whether a response's first result is adult-only.
type AdultCheckFunc func(ctx context.Context, response *nexus.SearchResponse) bool

// IconURLFunc resolves an author's avatar URL.
type IconURLFunc func(ctx context.Context, userID int64) string

// Builder assembles result batches.
type Builder struct {
	// MaxBatches caps how many batches one invocation may produce.
	MaxBatches int

	// AdultCheck decides whether a thumbnail must be suppressed. Only
	// consulted when adult results may appear in a channel not flagged for
	// them.
	AdultCheck AdultCheckFunc

	// IconURL resolves mod author avatars for single-result batches.
	IconURL IconURLFunc
}

// FieldsPerBatch returns how many queries fit in one batch: every query
// costs one field per target plus a header field.
func FieldsPerBatch(targetCount int) int {
	return MaxFields / (targetCount + 1)
}

// Chunk splits queries into batch-sized groups. If the queries would exceed
// MaxBatches batches the whole request is rejected with ErrTooManyQueries.
func (b *Builder) Chunk(queries []string, targetCount int) ([][]string, error) {
	perBatch := FieldsPerBatch(targetCount)
	if maxQueries := b.MaxBatches * perBatch; len(queries) > maxQueries {
		return nil, fmt.Errorf("%w (max=%d)", ErrTooManyQueries, maxQueries)
	}

	var chunks [][]string
	for start := 0; start < len(queries); start += perBatch {
		end := min(start+perBatch, len(queries))
		chunks = append(chunks, queries[start:end])
	}
	return chunks, nil
}

// NewBatch returns an empty branded batch.
func NewBatch() *Batch {
	return &Batch{
		Color: BrandColor,
		Author: Author{
			Name:    "Nexus Mods",
			URL:     "https://www.nexusmods.com/",
			IconURL: "https://images.nexusmods.com/favicons/ReskinOrange/favicon-32x32.png",
		},
	}
}

// Placeholder returns the batch shown while searches are in flight.
func Placeholder() *Batch {
	batch := NewBatch()
	batch.Description = ":mag_right: Searching mods..."
	return batch
}

// Rejection returns the batch shown when a message carries too many queries.
func Rejection(err error) *Batch {
	batch := NewBatch()
	batch.Description = ":x: " + err.Error() + "."
	return batch
}

// Build renders the outcomes of one chunk of queries. A single query whose
// hits reduce to one displayable result gets the detailed layout; everything
// else gets one field per query and target. hideThumbs suppresses thumbnails
// of results the adult check flags.
func (b *Builder) Build(ctx context.Context, results []engine.QueryResult, hideThumbs bool) *Batch {
	batch := NewBatch()

	if len(results) == 1 {
		result := results[0]
		if hit, ok := soleHit(result.Hits); ok {
			b.buildSingle(ctx, batch, result.Query, hit, hideThumbs)
			return batch
		}
		batch.Title = fmt.Sprintf("Search results for: **%s**", quoteQuery(result.Query))
		b.addQueryFields(batch, result)
		return batch
	}

	for _, result := range results {
		batch.AddField("Search results for:", fmt.Sprintf("**%s**", quoteQuery(result.Query)), false)
		b.addQueryFields(batch, result)
	}
	return batch
}

// soleHit reports whether the hits boil down to a single displayable one: a
// lone target, or exactly one target with results while the rest came back
// empty. Errors keep the compact per-target layout so they stay visible.
func soleHit(hits []engine.TargetHit) (engine.TargetHit, bool) {
	if len(hits) == 1 {
		return hits[0], true
	}

	var successes, failures int
	var sole engine.TargetHit
	for _, hit := range hits {
		switch hit.Outcome {
		case engine.Success:
			successes++
			sole = hit
		case engine.Failed:
			failures++
		}
	}
	if successes == 1 && failures == 0 {
		return sole, true
	}
	return engine.TargetHit{}, false
}

// addQueryFields appends one field per non-empty target outcome, or a
// "No results." field when every target came back empty.
func (b *Builder) addQueryFields(batch *Batch, result engine.QueryResult) {
	before := len(batch.Fields)
	for _, hit := range result.Hits {
		switch hit.Outcome {
		case engine.Success:
			batch.AddField(hit.Target.Name, resultLine(hit.Response), true)
		case engine.Failed:
			batch.AddField(hit.Target.Name, errorLine(hit.Err, result.Query), false)
		}
	}
	if len(batch.Fields) == before {
		batch.AddField("No results.", globalSearchLinks(result.Query), false)
	}
}

// buildSingle fills the detailed single-result layout.
func (b *Builder) buildSingle(ctx context.Context, batch *Batch, query string, hit engine.TargetHit, hideThumbs bool) {
	switch hit.Outcome {
	case engine.Empty:
		batch.AddField("No results.", globalSearchLinks(query), false)

	case engine.Failed:
		var upstreamErr *nexus.UpstreamError
		if errors.As(hit.Err, &upstreamErr) {
			batch.Title = fmt.Sprintf("`%s`", upstreamErr.Error())
			batch.URL = upstreamErr.URL
		} else {
			batch.Title = fmt.Sprintf("`%s`", hit.Err.Error())
		}
		batch.Author.Name += " | " + hit.Target.Name
		batch.Description = fmt.Sprintf(
			"Error while searching for **%s**.\n[Server Status](https://www.isitdownrightnow.com/nexusmods.com.html) | %s",
			quoteQuery(query), globalSearchLinks(query))

	case engine.Success:
		response := hit.Response
		mod := response.Results[0]

		batch.Author = Author{
			Name:    fmt.Sprintf("%s | %s", mod.Username, hit.Target.Name),
			URL:     fmt.Sprintf("https://www.nexusmods.com/users/%d", mod.UserID),
			IconURL: b.IconURL(ctx, mod.UserID),
		}
		batch.Title = modTitle(mod.Name)
		batch.URL = mod.PageURL()
		if response.Total > 1 {
			batch.Description = fmt.Sprintf("[All %d results for **%s**](%s)",
				response.Total, quoteQuery(query), resultsPageURL(mod, response))
		}
		if !hideThumbs || !b.AdultCheck(ctx, response) {
			batch.Thumbnail = mod.ThumbnailURL()
		}
		batch.AddField("Downloads", formatCount(mod.Downloads), true)
		batch.AddField("Endorsements", formatCount(mod.Endorsements), true)
	}
}

// resultLine renders a compact success line: a mod link, plus a link to the
// full result listing when there is more than one hit.
func resultLine(response *nexus.SearchResponse) string {
	mod := response.Results[0]
	line := fmt.Sprintf("[%s](%s)", modTitle(mod.Name), mod.PageURL())
	if response.Total > 1 {
		line = fmt.Sprintf("%s | [%d results](%s)", line, response.Total, resultsPageURL(mod, response))
	}
	return line
}

func errorLine(err error, query string) string {
	var upstreamErr *nexus.UpstreamError
	if errors.As(err, &upstreamErr) {
		return fmt.Sprintf(
			"[`%s`](%s)\n[Server Status](https://www.isitdownrightnow.com/nexusmods.com.html) | %s",
			upstreamErr.Error(), upstreamErr.URL, globalSearchLinks(query))
	}
	return fmt.Sprintf("`%s`\n%s", err.Error(), globalSearchLinks(query))
}

// resultsPageURL links to the target's mod listing filtered to the searched
// terms.
func resultsPageURL(mod nexus.ModResult, response *nexus.SearchResponse) string {
	return fmt.Sprintf(
		"https://www.nexusmods.com/%s/mods/?RH_ModList=include_adult:%s,open:true,search_filename:%s#permalink",
		mod.GameName, strconv.FormatBool(response.IncludeAdult), strings.Join(response.Terms, "+"))
}

func globalSearchLinks(query string) string {
	escaped := url.QueryEscape(query)
	return fmt.Sprintf(
		"[Results for all games](https://www.nexusmods.com/search/?gsearch=%s&gsearchtype=mods) | [DuckDuckGo Search](https://duckduckgo.com/?q=%s)",
		escaped, escaped)
}

// modTitle unescapes HTML entities and bounds very long mod names.
func modTitle(name string) string {
	title := []rune(html.UnescapeString(name))
	if len(title) > 128 {
		return string(title[:125]) + "..."
	}
	return string(title)
}

func quoteQuery(query string) string {
	return "'" + whitespaceRE.ReplaceAllString(query, " ") + "'"
}

var countPrinter = message.NewPrinter(language.English)

// formatCount renders a number with thousands separators.
func formatCount(n int64) string {
	return countPrinter.Sprintf("%d", n)
}
