// Package query extracts and normalizes mod search queries from raw chat
// message text. Queries are written between curly braces and may be separated
// by commas; inline markup is handled first so formatted text never produces
// accidental matches.
package query

import (
	"regexp"
	"strings"
)

// Inline markup spans handled before brace matching, longest-match-first:
// fenced code, inline code, quotes, bold italics, bold, italics, underline,
// strikethrough, spoilers. Opaque spans (code, quotes, spoilers) are replaced
// with a single placeholder; emphasis spans keep their content with the
// markers stripped, so a query wrapped in any nesting of emphasis still
// matches. RE2 has no lookaround, so the emphasis patterns anchor the span
// body on non-space characters instead.
var markupRE = regexp.MustCompile(
	"(?ms)" +
		"```.*?```" + // ```multiline code```
		"|`.*?`" + // `inline code`
		"|^>\\s.*?$" + // > quote
		"|\\|\\|.*?\\|\\|" + // ||spoiler||
		"|\\*{3}(?:\\S|\\S.*?\\S)\\*{3}" + // ***bold italics***
		"|\\*{2}(?:\\S|\\S.*?\\S)\\*{2}" + // **bold**
		"|\\*(?:\\S|\\S.*?\\S)\\*" + // *italics*
		"|__.*?__" + // __underline__
		"|~~.*?~~", // ~~strikethrough~~
)

// Text between braces, excluding characters reserved by the upstream
// query-string syntax (";:=*%$&_<>?`[]). Newlines are allowed inside.
var queriesRE = regexp.MustCompile("(?s)\\{([^\";:=*%$&_<>?\x60\\[\\]]*?)\\}")

var (
	// Leading/trailing non-word runs stripped from queries.
	stripRE = regexp.MustCompile(`^[^\p{L}\p{N}_]+|[^\p{L}\p{N}_]+$`)
	// Remaining non-word runs collapsed to a single comma.
	specialRE = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

const (
	// MinLength and MaxLength bound the normalized length of an accepted
	// query, in runes.
	MinLength = 3
	MaxLength = 100
)

// Normalize canonicalizes a raw query into the upstream search-term format:
// possessive suffixes dropped, surrounding punctuation stripped, inner
// punctuation runs collapsed to commas, lower-cased.
func Normalize(q string) string {
	q = strings.ReplaceAll(q, "'s", "")
	q = stripRE.ReplaceAllString(q, "")
	q = specialRE.ReplaceAllString(q, ",")
	return strings.ToLower(q)
}

// stripMarkup neutralizes inline markup. Opaque spans become a single "?"
// (excluded from brace matching since "?" is a reserved character); emphasis
// spans are unwrapped recursively so nesting depth does not matter.
func stripMarkup(text string) string {
	return markupRE.ReplaceAllStringFunc(text, func(span string) string {
		switch {
		case strings.HasPrefix(span, "`"),
			strings.HasPrefix(span, ">"),
			strings.HasPrefix(span, "||"):
			return "?"
		}
		inner := strings.Trim(span, "*_~")
		if inner == span {
			return span
		}
		return stripMarkup(inner)
	})
}

// Extract finds the unique search queries in raw message text, in first-seen
// order. Pieces whose normalized length falls outside [MinLength, MaxLength]
// are dropped. Extract never fails; malformed input yields fewer or no
// matches.
func Extract(text string) []string {
	plain := stripMarkup(text)

	var queries []string
	seen := make(map[string]struct{})
	for _, group := range queriesRE.FindAllStringSubmatch(plain, -1) {
		for _, piece := range strings.Split(group[1], ",") {
			piece = strings.TrimSpace(piece)
			if n := len([]rune(Normalize(piece))); n < MinLength || n > MaxLength {
				continue
			}
			if _, dup := seen[piece]; dup {
				continue
			}
			seen[piece] = struct{}{}
			queries = append(queries, piece)
		}
	}
	return queries
}
