// Package resolver maps free-text item descriptions onto catalog items.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

const DefaultThreshold = 0.6

var ErrNoConfidentMatch = errors.New("no confident catalog match")

// NoMatchError carries the best guess that was not good enough.
type NoMatchError struct {
	Description string
	BestItemID  string
	BestScore   float64
	// Ambiguous lists the items that were equally plausible, if any.
	Ambiguous []string
}

func (e *NoMatchError) Error() string {
	if len(e.Ambiguous) > 0 {
		return fmt.Sprintf("ambiguous catalog match for %q (%s)", e.Description, strings.Join(e.Ambiguous, ", "))
	}
	if e.BestItemID == "" {
		return fmt.Sprintf("no catalog match for %q", e.Description)
	}
	return fmt.Sprintf("no confident catalog match for %q (best %s at %.2f)", e.Description, e.BestItemID, e.BestScore)
}

func (e *NoMatchError) Unwrap() error { return ErrNoConfidentMatch }

// Scorer rates how well a description matches a catalog name, in [0,1].
type Scorer interface {
	Score(description, candidate string) float64
}

type Resolver struct {
	scorer    Scorer
	threshold float64
}

func New(scorer Scorer, threshold float64) *Resolver {
	if scorer == nil {
		scorer = SimilarityScorer{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{scorer: scorer, threshold: threshold}
}

type candidate struct {
	item    domain.InventoryItem
	score   float64
	covered int
}

// Resolve picks the best scoring catalog item. A catalog name whose every word
// appears in the description outranks partial matches, the longer name first;
// two different names covered equally well are ambiguous. Equal scores prefer
// an item with stock on hand, then the lowest ID, so the result is stable.
func (r *Resolver) Resolve(line domain.ParsedLineItem, catalog []domain.InventoryItem) (domain.ResolvedLineItem, error) {
	if line.Quantity <= 0 || len(catalog) == 0 {
		return domain.ResolvedLineItem{}, &NoMatchError{Description: line.Description}
	}

	words := tokenSet(line.Description)
	cands := make([]candidate, 0, len(catalog))
	for _, item := range catalog {
		cands = append(cands, candidate{
			item:    item,
			score:   clamp01(r.scorer.Score(line.Description, item.Name)),
			covered: coveredTokens(words, item.Name),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.covered != b.covered {
			return a.covered > b.covered
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if (a.item.Stock > 0) != (b.item.Stock > 0) {
			return a.item.Stock > 0
		}
		return a.item.ID < b.item.ID
	})

	best := cands[0]
	if ids := rivals(cands); len(ids) > 1 {
		return domain.ResolvedLineItem{}, &NoMatchError{
			Description: line.Description,
			BestItemID:  best.item.ID,
			BestScore:   best.score,
			Ambiguous:   ids,
		}
	}
	if best.score < r.threshold {
		return domain.ResolvedLineItem{}, &NoMatchError{
			Description: line.Description,
			BestItemID:  best.item.ID,
			BestScore:   best.score,
		}
	}
	return domain.ResolvedLineItem{
		ItemID:     best.item.ID,
		Quantity:   line.Quantity,
		Confidence: best.score,
	}, nil
}

// rivals returns the distinct names that are covered as fully as the winner,
// one item ID per name. Fewer than two means the winner stands alone.
func rivals(sorted []candidate) []string {
	best := sorted[0]
	if best.covered == 0 {
		return nil
	}
	seen := map[string]bool{normalize(best.item.Name): true}
	ids := []string{best.item.ID}
	for _, c := range sorted[1:] {
		if c.covered != best.covered {
			break
		}
		name := normalize(c.item.Name)
		if !seen[name] {
			seen[name] = true
			ids = append(ids, c.item.ID)
		}
	}
	return ids
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
