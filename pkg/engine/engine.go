// Package engine fans search queries out over the configured targets and
// collects per-target outcomes.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/store"
)

// Searcher is the part of the upstream client the engine needs.
type Searcher interface {
	SearchMods(ctx context.Context, query string, gameID int64, includeAdult bool) (*nexus.SearchResponse, error)
}

// Outcome classifies a single target search.
type Outcome int

const (
	// Success means the target returned at least one result.
	Success Outcome = iota
	// Empty means the target answered with zero results.
	Empty
	// Failed means the request errored; Err holds the cause.
	Failed
)

// TargetHit is the outcome of one query against one target.
type TargetHit struct {
	Target   store.Target
	Outcome  Outcome
	Response *nexus.SearchResponse
	Err      error
}

// QueryResult groups the per-target hits for one query, in target order.
type QueryResult struct {
	Query string
	Hits  []TargetHit
}

// Engine runs search batches against an upstream searcher.
type Engine struct {
	searcher Searcher
	logger   *log.Logger
}

func New(searcher Searcher) *Engine {
	return &Engine{
		searcher: searcher,
		logger:   log.ForService("engine"),
	}
}

// Run searches every query against every target. Targets are queried
// concurrently; queries run one after another so a message with many queries
// does not multiply the request burst. Hit order follows target order
// regardless of response timing.
func (e *Engine) Run(ctx context.Context, queries []string, targets []store.Target, includeAdult bool) []QueryResult {
	invocation := uuid.NewString()
	e.logger.Debugf("invocation %s: %d queries over %d targets", invocation, len(queries), len(targets))

	results := make([]QueryResult, 0, len(queries))
	for _, query := range queries {
		result := QueryResult{
			Query: query,
			Hits:  make([]TargetHit, len(targets)),
		}

		var wg sync.WaitGroup
		for i, target := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result.Hits[i] = e.searchTarget(ctx, query, target, includeAdult)
			}()
		}
		wg.Wait()

		results = append(results, result)
	}

	e.logger.Debugf("invocation %s: done", invocation)
	return results
}

func (e *Engine) searchTarget(ctx context.Context, query string, target store.Target, includeAdult bool) TargetHit {
	hit := TargetHit{Target: target}

	response, err := e.searcher.SearchMods(ctx, query, target.ID, includeAdult)
	if err != nil {
		e.logger.Debugf("query %q on %s failed: %v", query, target.Path, err)
		hit.Outcome = Failed
		hit.Err = err
		return hit
	}

	hit.Response = response
	// Classify on the result list, not the reported total: the endpoint has
	// been seen returning a positive total with no result items.
	if len(response.Results) == 0 {
		hit.Outcome = Empty
	} else {
		hit.Outcome = Success
	}
	return hit
}

// ResolveAdult maps a community's adult policy and the subchannel's
// adult flag to the include_adult request parameter and whether result
// thumbnails must be suppressed. Thumbnails are only suppressed when adult
// results may appear in a subchannel that is not flagged for them.
func ResolveAdult(policy store.AdultPolicy, adultChannel bool) (includeAdult, hideThumbs bool) {
	switch policy {
	case store.AdultAlways:
		return true, !adultChannel
	case store.AdultChannelDependent:
		return adultChannel, false
	default:
		return false, false
	}
}
