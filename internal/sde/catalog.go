package sde

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCatalogUnavailable is returned when the compressed catalog cannot be read or decoded.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Names holds the localized names of an item type, one per SDE language.
type Names struct {
	DE string `json:"de"`
	EN string `json:"en"`
	ES string `json:"es"`
	FR string `json:"fr"`
	JA string `json:"ja"`
	RU string `json:"ru"`
	ZH string `json:"zh"`
}

// Item is a market-tradeable item type from the compressed catalog.
type Item struct {
	ID      int32 `json:"id"`
	Name    Names `json:"name"`
	GroupID int32 `json:"groupID"`
}

// Catalog is the read-only, ordered list of tradeable items.
type Catalog struct {
	items []Item
	byID  map[int32]int
}

// NewCatalog indexes items. Type IDs must be unique.
func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: items,
		byID:  make(map[int32]int, len(items)),
	}
	for i, it := range items {
		if _, dup := c.byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate type id %d", it.ID)
		}
		c.byID[it.ID] = i
	}
	return c, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns the items in catalog order. Callers must not modify the slice.
func (c *Catalog) Items() []Item { return c.items }

// ByID looks up an item by type ID.
func (c *Catalog) ByID(id int32) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Load reads a gzip-compressed JSON catalog from disk.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode gunzips r and parses the JSON item array in it.
// Any corruption fails the whole load; a partial catalog is never returned.
func Decode(r io.Reader) (*Catalog, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrCatalogUnavailable, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrCatalogUnavailable, err)
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrCatalogUnavailable, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: json: not an item array", ErrCatalogUnavailable)
	}

	c, err := NewCatalog(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return c, nil
}

// Encode writes items as a gzip-compressed JSON array, the format Decode reads.
func Encode(w io.Writer, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(items); err != nil {
		zw.Close()
		return fmt.Errorf("encode catalog: %w", err)
	}
	return zw.Close()
}
