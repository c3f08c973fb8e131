// Package resolver turns free-text item names into the set of catalog items to price.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"eve-jita-price/internal/sde"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotFound       = errors.New("no matching item")
	ErrTooManyResults = errors.New("too many matching items")
)

// TooManyResultsError carries the match count of a rejected query.
type TooManyResultsError struct {
	Count int
	Max   int
}

func (e *TooManyResultsError) Error() string {
	return fmt.Sprintf("%d items match, limit is %d", e.Count, e.Max)
}

func (e *TooManyResultsError) Unwrap() error { return ErrTooManyResults }

// exclusion hides a family of items unless the query names the family itself.
type exclusion struct {
	marker   string   // substring of the English name identifying the family
	triggers []string // query substrings that opt back in
}

var exclusions = []exclusion{
	{marker: "SKIN", triggers: []string{"SKIN", "涂装"}},
	{marker: "Blueprint", triggers: []string{"Blueprint", "蓝图"}},
}

// Resolve returns the items whose localized name starts with query.
//
// SKIN and Blueprint variants are dropped unless the query asks for them. If that
// filtering removes everything, the unfiltered matches are used instead.
// More than maxResults matches is rejected with *TooManyResultsError.
func Resolve(query string, cat *sde.Catalog, maxResults int) ([]sde.Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	matches := Match(query, cat)
	if len(matches) == 0 {
		return nil, ErrNotFound
	}

	filtered := matches
	for _, ex := range exclusions {
		if containsAny(query, ex.triggers) {
			continue
		}
		filtered = lo.Reject(filtered, func(it sde.Item, _ int) bool {
			return strings.Contains(it.Name.EN, ex.marker)
		})
	}
	if len(filtered) == 0 {
		filtered = matches
	}

	if len(filtered) > maxResults {
		return nil, &TooManyResultsError{Count: len(filtered), Max: maxResults}
	}
	return filtered, nil
}

// Match returns every item with a localized name starting with query, in
// catalog order. Chinese and English names compare case-insensitively, the other
// languages exactly.
func Match(query string, cat *sde.Catalog) []sde.Item {
	if query == "" || cat == nil {
		return nil
	}
	upper := strings.ToUpper(query)
	return lo.Filter(cat.Items(), func(it sde.Item, _ int) bool {
		return matches(it.Name, query, upper)
	})
}

func matches(n sde.Names, query, upper string) bool {
	if hasPrefix(strings.ToUpper(n.ZH), upper) || hasPrefix(strings.ToUpper(n.EN), upper) {
		return true
	}
	for _, name := range []string{n.DE, n.FR, n.ES, n.JA, n.RU} {
		if hasPrefix(name, query) {
			return true
		}
	}
	return false
}

func hasPrefix(name, prefix string) bool {
	return name != "" && strings.HasPrefix(name, prefix)
}

func containsAny(s string, subs []string) bool {
	return lo.SomeBy(subs, func(sub string) bool { return strings.Contains(s, sub) })
}
