package engine

import "eve-jita-price/internal/sde"

const (
	// FittingGroupID is SDE group 300 (Cyberimplant). Pirate implant sets are
	// sold as six pieces that share this group.
	FittingGroupID int32 = 300
	FittedSetSize        = 6

	PLEXTypeID     int32 = 44992
	PLEXBundleSize       = 500
)

// TotalKind names the rule that produced a combined total.
type TotalKind string

const (
	FittedSetTotal TotalKind = "fitted-set"
	BundleTotal    TotalKind = "bundle"
)

// Total is a combined price line. Multiplier is 1 for fitted sets.
type Total struct {
	Kind       TotalKind
	Multiplier int
	Buy        float64
	Sell       float64
	Mid        float64
}

// Result is everything the report needs for one inquiry.
type Result struct {
	Lines  []PriceQuote
	Totals []Total
}

// IsFittedSet reports whether items are exactly six Cyberimplant pieces.
func IsFittedSet(items []sde.Item) bool {
	if len(items) != FittedSetSize {
		return false
	}
	for _, it := range items {
		if it.GroupID != FittingGroupID {
			return false
		}
	}
	return true
}

// IsPLEXBundle reports whether items is the single PLEX type.
func IsPLEXBundle(items []sde.Item) bool {
	return len(items) == 1 && items[0].ID == PLEXTypeID
}

// Aggregate adds combined totals to the per-item quotes.
//
// Totals sum the per-item figures as shown, so the midpoint total is a sum of
// already rounded midpoints. NaN in any line carries into the total.
func Aggregate(quotes []PriceQuote) Result {
	res := Result{Lines: quotes}

	items := make([]sde.Item, len(quotes))
	for i, q := range quotes {
		items[i] = q.Item
	}

	if IsFittedSet(items) {
		t := Total{Kind: FittedSetTotal, Multiplier: 1}
		for _, q := range quotes {
			t.Buy += q.Buy
			t.Sell += q.Sell
			t.Mid += q.Mid
		}
		res.Totals = append(res.Totals, t)
	}

	if IsPLEXBundle(items) {
		q := quotes[0]
		res.Totals = append(res.Totals, Total{
			Kind:       BundleTotal,
			Multiplier: PLEXBundleSize,
			Buy:        q.Buy * PLEXBundleSize,
			Sell:       q.Sell * PLEXBundleSize,
			Mid:        q.Mid * PLEXBundleSize,
		})
	}
	return res
}
