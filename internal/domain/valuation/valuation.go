// Package valuation prices diffed items against an external market feed and
// aggregates them into per-type value rows.
package valuation

import (
	"context"
	"fmt"

	"github.com/bonebunny/lootledger/internal/domain/item"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

// Query is one pricing request line sent to the market feed.
type Query struct {
	TypeName     string
	StackCount   int
	CategoryHint string
}

// Price is the feed's answer for one query line. A zero Price means the
// feed does not know the item; that is not an error.
type Price struct {
	UnitValueMinor float64
	UnitValueMajor float64
	Category       string
	Known          bool
}

// Pricer answers a batch of queries in one call. Implementations own their
// caching and retry behavior; the engine stays deterministic given identical
// responses.
type Pricer interface {
	PriceBatch(ctx context.Context, queries []Query) ([]Price, error)
}

// Row aggregates all records sharing a type name within one valuation call.
type Row struct {
	Name       string  `json:"name"`
	Qty        int     `json:"qty"`
	MinorEach  float64 `json:"minor_each"`
	MinorTotal float64 `json:"minor_total"`
	MajorEach  float64 `json:"major_each"`
	MajorTotal float64 `json:"major_total"`
	Category   string  `json:"category,omitempty"`
}

// Result carries the aggregated rows and batch totals in both denominations.
type Result struct {
	Rows       []Row
	TotalMinor float64
	TotalMajor float64
}

// Engine delegates pricing to a Pricer and aggregates the answers.
type Engine struct {
	pricer Pricer
}

// New creates a valuation engine backed by the given pricer.
func New(pricer Pricer) *Engine {
	return &Engine{pricer: pricer}
}

// Valuate prices the given records and folds them into rows keyed by type
// name, summing stack counts across duplicate entries. Unpriced items are
// kept with zero value; filtering by a display threshold is a presentation
// concern, not a valuation one.
func (e *Engine) Valuate(ctx context.Context, items []item.Record) (Result, error) {
	if len(items) == 0 {
		return Result{}, nil
	}

	queries := make([]Query, len(items))
	for i, rec := range items {
		queries[i] = Query{
			TypeName:     rec.Name(),
			StackCount:   rec.Stack(),
			CategoryHint: rec.Rarity,
		}
	}

	prices, err := e.pricer.PriceBatch(ctx, queries)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPricing, err)
	}
	if len(prices) != len(queries) {
		return Result{}, fmt.Errorf("%w: got %d prices for %d queries",
			ErrPricing, len(prices), len(queries))
	}

	// Aggregate by name in first-seen order so identical inputs yield
	// identical row ordering.
	index := make(map[string]int, len(items))
	var rows []Row
	unpriced := 0
	for i, rec := range items {
		name := rec.Name()
		price := prices[i]
		if !price.Known {
			unpriced++
		}

		pos, ok := index[name]
		if !ok {
			pos = len(rows)
			index[name] = pos
			rows = append(rows, Row{Name: name})
		}

		row := &rows[pos]
		qty := rec.Stack()
		row.Qty += qty
		if row.Category == "" {
			row.Category = price.Category
		}
		if price.Known {
			row.MinorEach = price.UnitValueMinor
			row.MajorEach = price.UnitValueMajor
			row.MinorTotal += price.UnitValueMinor * float64(qty)
			row.MajorTotal += price.UnitValueMajor * float64(qty)
		}
	}
	metrics.RecordUnpricedItems(unpriced)

	result := Result{Rows: rows}
	for _, row := range rows {
		result.TotalMinor += row.MinorTotal
		result.TotalMajor += row.MajorTotal
	}
	return result, nil
}
