package sde

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// sdeType is the subset of an SDE types.yaml entry the catalog needs.
type sdeType struct {
	Name          map[string]string `yaml:"name"`
	GroupID       int32             `yaml:"groupID"`
	MarketGroupID *int32            `yaml:"marketGroupID"`
}

// BuildFromSDE converts the SDE types.yaml map (typeID -> definition) into catalog
// items. Types without a market group cannot be traded and are skipped.
// The result is sorted by type ID.
func BuildFromSDE(r io.Reader) ([]Item, error) {
	var types map[int32]sdeType
	if err := yaml.NewDecoder(r).Decode(&types); err != nil {
		return nil, fmt.Errorf("parse types.yaml: %w", err)
	}

	items := make([]Item, 0, len(types))
	for id, t := range types {
		if t.MarketGroupID == nil {
			continue
		}
		items = append(items, Item{
			ID:      id,
			Name:    namesFrom(t.Name),
			GroupID: t.GroupID,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func namesFrom(m map[string]string) Names {
	return Names{
		DE: m["de"],
		EN: m["en"],
		ES: m["es"],
		FR: m["fr"],
		JA: m["ja"],
		RU: m["ru"],
		ZH: m["zh"],
	}
}
