package engine

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"eve-jita-price/internal/esi"
	"eve-jita-price/internal/sde"
)

// OrderSource fetches one side of an item's order book with retries.
type OrderSource interface {
	FetchSide(ctx context.Context, typeID, regionID int32, side esi.Side) esi.SideResult
}

// PriceQuote is the best bid/ask for one item at one region.
// Buy, Sell and Mid are NaN when the book was empty or the fetch gave up.
type PriceQuote struct {
	Item          sde.Item
	Buy           float64
	Sell          float64
	Mid           float64
	BuyExhausted  bool
	SellExhausted bool
}

// BestPrice returns the highest buy or the lowest sell price, NaN for no orders.
func BestPrice(side esi.Side, prices []float64) float64 {
	if len(prices) == 0 {
		return math.NaN()
	}
	best := prices[0]
	for _, p := range prices[1:] {
		if side == esi.Buy && p > best || side == esi.Sell && p < best {
			best = p
		}
	}
	return best
}

// Reduce turns a fetch result into its best price. Exhausted fetches become NaN.
func Reduce(r esi.SideResult) float64 {
	if r.Exhausted() {
		return math.NaN()
	}
	return BestPrice(r.Side, r.Prices)
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Midpoint is the mean of buy and sell rounded to 2 decimal places.
func Midpoint(buy, sell float64) float64 {
	return Round2((buy + sell) / 2)
}

// Quoter prices a list of items against one region.
type Quoter struct {
	src   OrderSource
	limit int
}

// NewQuoter creates a Quoter. By default every side of every item is fetched at once.
func NewQuoter(src OrderSource) *Quoter {
	return &Quoter{src: src, limit: -1}
}

// WithLimit caps the number of concurrent side fetches. n <= 0 removes the cap.
func (q *Quoter) WithLimit(n int) *Quoter {
	if n <= 0 {
		n = -1
	}
	q.limit = n
	return q
}

// Quote fetches buy and sell books for every item concurrently and returns one
// quote per item in input order. It returns only after every fetch has finished.
func (q *Quoter) Quote(ctx context.Context, regionID int32, items []sde.Item) []PriceQuote {
	buys := make([]esi.SideResult, len(items))
	sells := make([]esi.SideResult, len(items))

	var g errgroup.Group
	g.SetLimit(q.limit)
	for i, it := range items {
		g.Go(func() error {
			buys[i] = q.src.FetchSide(ctx, it.ID, regionID, esi.Buy)
			return nil
		})
		g.Go(func() error {
			sells[i] = q.src.FetchSide(ctx, it.ID, regionID, esi.Sell)
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]PriceQuote, len(items))
	for i, it := range items {
		buy, sell := Reduce(buys[i]), Reduce(sells[i])
		quotes[i] = PriceQuote{
			Item:          it,
			Buy:           buy,
			Sell:          sell,
			Mid:           Midpoint(buy, sell),
			BuyExhausted:  buys[i].Exhausted(),
			SellExhausted: sells[i].Exhausted(),
		}
	}
	return quotes
}
