package present

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/store"
)

func testBuilder(adult bool) *Builder {
	return &Builder{
		MaxBatches: 3,
		AdultCheck: func(ctx context.Context, response *nexus.SearchResponse) bool { return adult },
		IconURL: func(ctx context.Context, userID int64) string {
			return "https://icons.example.com/u.png"
		},
	}
}

func successHit(total int) engine.TargetHit {
	return engine.TargetHit{
		Target:  store.Target{ID: 1704, Path: "skyrimspecialedition", Name: "Skyrim Special Edition"},
		Outcome: engine.Success,
		Response: &nexus.SearchResponse{
			Results: []nexus.ModResult{{
				Name:         "Ordinator - Perks of Skyrim",
				URL:          "/skyrimspecialedition/mods/1137",
				ModID:        1137,
				GameID:       1704,
				GameName:     "skyrimspecialedition",
				UserID:       3959191,
				Username:     "EnaiSiaion",
				Image:        "/thumbnails/1137.jpg",
				Downloads:    5000000,
				Endorsements: 300000,
			}},
			Total: total,
			Terms: []string{"ordinator"},
		},
	}
}

func TestFieldsPerBatch(t *testing.T) {
	tests := []struct{ targets, want int }{
		{1, 12},
		{2, 8},
		{3, 6},
		{4, 5},
		{5, 4},
	}
	for _, tc := range tests {
		if got := FieldsPerBatch(tc.targets); got != tc.want {
			t.Errorf("FieldsPerBatch(%d) = %d, want %d", tc.targets, got, tc.want)
		}
	}
}

func TestChunk(t *testing.T) {
	builder := testBuilder(false)

	queries := make([]string, 13)
	for i := range queries {
		queries[i] = "q"
	}
	chunks, err := builder.Chunk(queries, 1)
	if err != nil {
		t.Fatalf("chunking 13 queries: %v", err)
	}
	if len(chunks) != 2 || len(chunks[0]) != 12 || len(chunks[1]) != 1 {
		t.Errorf("unexpected chunk sizes %d/%d", len(chunks[0]), len(chunks[1]))
	}
}

func TestChunkRejectsTooManyQueries(t *testing.T) {
	builder := testBuilder(false)

	// 5 targets leaves room for 4 queries per batch, 12 in total.
	queries := make([]string, 13)
	for i := range queries {
		queries[i] = "q"
	}
	_, err := builder.Chunk(queries, 5)
	if !errors.Is(err, ErrTooManyQueries) {
		t.Fatalf("expected ErrTooManyQueries, got %v", err)
	}
	if !strings.Contains(err.Error(), "max=12") {
		t.Errorf("expected max in message, got %q", err)
	}
}

func TestBuildSingleResult(t *testing.T) {
	builder := testBuilder(false)

	batch := builder.Build(t.Context(), []engine.QueryResult{
		{Query: "ordinator", Hits: []engine.TargetHit{successHit(42)}},
	}, false)

	if batch.Title != "Ordinator - Perks of Skyrim" {
		t.Errorf("unexpected title %q", batch.Title)
	}
	if batch.URL != "https://nexusmods.com/skyrimspecialedition/mods/1137" {
		t.Errorf("unexpected URL %q", batch.URL)
	}
	if batch.Author.Name != "EnaiSiaion | Skyrim Special Edition" {
		t.Errorf("unexpected author %q", batch.Author.Name)
	}
	if batch.Author.IconURL != "https://icons.example.com/u.png" {
		t.Errorf("unexpected author icon %q", batch.Author.IconURL)
	}
	if !strings.Contains(batch.Description, "All 42 results for **'ordinator'**") {
		t.Errorf("unexpected description %q", batch.Description)
	}
	if !strings.Contains(batch.Description, "search_filename:ordinator#permalink") {
		t.Errorf("expected filtered listing link, got %q", batch.Description)
	}
	if batch.Thumbnail != "https://staticdelivery.nexusmods.com/thumbnails/1137.jpg" {
		t.Errorf("unexpected thumbnail %q", batch.Thumbnail)
	}

	if len(batch.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(batch.Fields))
	}
	if batch.Fields[0].Value != "5,000,000" {
		t.Errorf("expected separated download count, got %q", batch.Fields[0].Value)
	}
	if batch.Fields[1].Value != "300,000" {
		t.Errorf("expected separated endorsement count, got %q", batch.Fields[1].Value)
	}
}

func TestBuildSingleResultNoDescriptionForUniqueHit(t *testing.T) {
	builder := testBuilder(false)

	batch := builder.Build(t.Context(), []engine.QueryResult{
		{Query: "ordinator", Hits: []engine.TargetHit{successHit(1)}},
	}, false)
	if batch.Description != "" {
		t.Errorf("expected no description for a single hit, got %q", batch.Description)
	}
}

func TestBuildThumbnailSuppression(t *testing.T) {
	tests := []struct {
		name       string
		hideThumbs bool
		adult      bool
		wantThumb  bool
	}{
		{"thumbs allowed", false, true, true},
		{"hidden but clean", true, false, true},
		{"hidden and adult", true, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			builder := testBuilder(tc.adult)
			batch := builder.Build(t.Context(), []engine.QueryResult{
				{Query: "q", Hits: []engine.TargetHit{successHit(1)}},
			}, tc.hideThumbs)
			if (batch.Thumbnail != "") != tc.wantThumb {
				t.Errorf("thumbnail = %q, want present=%v", batch.Thumbnail, tc.wantThumb)
			}
		})
	}
}

func TestBuildSingleEmpty(t *testing.T) {
	builder := testBuilder(false)

	batch := builder.Build(t.Context(), []engine.QueryResult{
		{Query: "nosuchmod", Hits: []engine.TargetHit{{
			Target:   store.Target{ID: 1704, Name: "Skyrim Special Edition"},
			Outcome:  engine.Empty,
			Response: &nexus.SearchResponse{},
		}}},
	}, false)

	if len(batch.Fields) != 1 || batch.Fields[0].Name != "No results." {
		t.Fatalf("expected a single No results. field, got %+v", batch.Fields)
	}
	if !strings.Contains(batch.Fields[0].Value, "gsearch=nosuchmod") {
		t.Errorf("expected global search link, got %q", batch.Fields[0].Value)
	}
	if !strings.Contains(batch.Fields[0].Value, "duckduckgo.com") {
		t.Errorf("expected fallback search link, got %q", batch.Fields[0].Value)
	}
}

func TestBuildSingleError(t *testing.T) {
	builder := testBuilder(false)

	batch := builder.Build(t.Context(), []engine.QueryResult{
		{Query: "ordinator", Hits: []engine.TargetHit{{
			Target:  store.Target{ID: 1704, Name: "Skyrim Special Edition"},
			Outcome: engine.Failed,
			Err:     &nexus.UpstreamError{Status: 503, Message: "Service Unavailable", URL: "https://search.example.com/mods"},
		}}},
	}, false)

	if batch.Title != "`Error 503: Service Unavailable`" {
		t.Errorf("unexpected title %q", batch.Title)
	}
	if batch.URL != "https://search.example.com/mods" {
		t.Errorf("unexpected URL %q", batch.URL)
	}
	if batch.Author.Name != "Nexus Mods | Skyrim Special Edition" {
		t.Errorf("unexpected author %q", batch.Author.Name)
	}
	if !strings.Contains(batch.Description, "Error while searching for **'ordinator'**") {
		t.Errorf("unexpected description %q", batch.Description)
	}
	if !strings.Contains(batch.Description, "Server Status") {
		t.Errorf("expected server status link, got %q", batch.Description)
	}
}

func TestBuildSingleQueryMultipleTargets(t *testing.T) {
	builder := testBuilder(false)

	batch := builder.Build(t.Context(), []engine.QueryResult{{
		Query: "ordinator",
		Hits: []engine.TargetHit{
			successHit(42),
			{
				Target:   store.Target{ID: 1303, Name: "Fallout 4"},
				Outcome:  engine.Empty,
				Response: &nexus.SearchResponse{},
			},
			{
				Target:  store.Target{ID: 100, Name: "Morrowind"},
				Outcome: engine.Failed,
				Err:     &nexus.UpstreamError{Status: 500, Message: "Internal Server Error", URL: "https://search.example.com/mods"},
			},
		},
	}}, false)

	if batch.Title != "Search results for: **'ordinator'**" {
		t.Errorf("unexpected title %q", batch.Title)
	}
	if len(batch.Fields) != 2 {
		t.Fatalf("expected empty target to be skipped, got %d fields", len(batch.Fields))
	}
	if batch.Fields[0].Name != "Skyrim Special Edition" || !strings.Contains(batch.Fields[0].Value, "| [42 results]") {
		t.Errorf("unexpected success field %+v", batch.Fields[0])
	}
	if batch.Fields[1].Name != "Morrowind" || !strings.Contains(batch.Fields[1].Value, "`Error 500: Internal Server Error`") {
		t.Errorf("unexpected error field %+v", batch.Fields[1])
	}
}

func TestBuildSingleQuerySoleSuccessRendersRichView(t *testing.T) {
	builder := testBuilder(false)

	// One target with results, the others empty: the query renders as if
	// only the successful target had been searched.
	batch := builder.Build(t.Context(), []engine.QueryResult{{
		Query: "ordinator",
		Hits: []engine.TargetHit{
			{
				Target:   store.Target{ID: 1303, Name: "Fallout 4"},
				Outcome:  engine.Empty,
				Response: &nexus.SearchResponse{},
			},
			successHit(42),
			{
				Target:   store.Target{ID: 100, Name: "Morrowind"},
				Outcome:  engine.Empty,
				Response: &nexus.SearchResponse{},
			},
		},
	}}, false)

	if batch.Title != "Ordinator - Perks of Skyrim" {
		t.Errorf("expected rich single-result view, got title %q", batch.Title)
	}
	if batch.Author.Name != "EnaiSiaion | Skyrim Special Edition" {
		t.Errorf("unexpected author %q", batch.Author.Name)
	}
	if len(batch.Fields) != 2 || batch.Fields[0].Name != "Downloads" {
		t.Fatalf("expected the Downloads/Endorsements fields, got %+v", batch.Fields)
	}
}

func TestBuildMultipleQueries(t *testing.T) {
	builder := testBuilder(false)

	emptyHit := engine.TargetHit{
		Target:   store.Target{ID: 1303, Name: "Fallout 4"},
		Outcome:  engine.Empty,
		Response: &nexus.SearchResponse{},
	}
	batch := builder.Build(t.Context(), []engine.QueryResult{
		{Query: "ordinator", Hits: []engine.TargetHit{successHit(1), emptyHit}},
		{Query: "nosuchmod", Hits: []engine.TargetHit{emptyHit, emptyHit}},
	}, false)

	wantNames := []string{"Search results for:", "Skyrim Special Edition", "Search results for:", "No results."}
	if len(batch.Fields) != len(wantNames) {
		t.Fatalf("expected %d fields, got %d: %+v", len(wantNames), len(batch.Fields), batch.Fields)
	}
	for i, want := range wantNames {
		if batch.Fields[i].Name != want {
			t.Errorf("field %d name %q, want %q", i, batch.Fields[i].Name, want)
		}
	}
	if batch.Fields[0].Value != "**'ordinator'**" {
		t.Errorf("unexpected header value %q", batch.Fields[0].Value)
	}
}

func TestModTitle(t *testing.T) {
	if got := modTitle("Farmhouse Chimneys &amp; More"); got != "Farmhouse Chimneys & More" {
		t.Errorf("expected entities unescaped, got %q", got)
	}

	long := strings.Repeat("x", 130)
	got := modTitle(long)
	if len([]rune(got)) != 128 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected 125 runes plus ellipsis, got %d runes", len([]rune(got)))
	}

	exact := strings.Repeat("y", 128)
	if got := modTitle(exact); got != exact {
		t.Errorf("expected 128-rune name untouched")
	}
}

func TestQuoteQueryCollapsesWhitespace(t *testing.T) {
	if got := quoteQuery("a  b\nc"); got != "'a b c'" {
		t.Errorf("quoteQuery = %q", got)
	}
}
