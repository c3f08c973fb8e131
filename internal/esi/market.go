package esi

import (
	"context"
	"fmt"
)

// Side is the order book side queried from ESI.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// MarketOrder mirrors the ESI market order response.
type MarketOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int32   `json:"system_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	IsBuyOrder   bool    `json:"is_buy_order"`
}

// FetchOrders fetches one side of the order book for a type in a region.
// It makes a single attempt; see FetchSide for the retrying variant.
func (c *Client) FetchOrders(ctx context.Context, regionID int32, side Side, typeID int32) ([]MarketOrder, error) {
	url := fmt.Sprintf("%s/markets/%d/orders/?datasource=tranquility&order_type=%s&type_id=%d",
		c.baseURL, regionID, side, typeID)
	return c.getOrderPages(ctx, url)
}

// Prices returns the price of every order.
func Prices(orders []MarketOrder) []float64 {
	out := make([]float64, len(orders))
	for i, o := range orders {
		out[i] = o.Price
	}
	return out
}
