package esi

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/metrics"
)

// RetryPolicy bounds how often a failed order fetch is repeated.
// Attempts includes the first request; Delay is fixed between attempts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy makes 5 attempts one second apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Delay: time.Second}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1))
	return backoff.WithContext(b, ctx)
}

// SideResult is the outcome of a retried order fetch.
// Err is set only when every attempt failed; Prices is nil then.
type SideResult struct {
	Side     Side
	Prices   []float64
	Attempts int
	Err      error
}

// Exhausted reports whether the fetch gave up.
func (r SideResult) Exhausted() bool {
	return r.Err != nil
}

// FetchSide fetches the order prices for one side of a type's order book,
// retrying transport and decode failures per the client's RetryPolicy.
// Failure is reported in the result, never as a panic or error return.
func (c *Client) FetchSide(ctx context.Context, typeID, regionID int32, side Side) SideResult {
	res := SideResult{Side: side}

	op := func() error {
		res.Attempts++
		orders, err := c.FetchOrders(ctx, regionID, side, typeID)
		if err != nil {
			metrics.ESIRequests.WithLabelValues(string(side), "error").Inc()
			return err
		}
		metrics.ESIRequests.WithLabelValues(string(side), "ok").Inc()
		res.Prices = Prices(orders)
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("ESI", "Request failed, retrying",
			zap.Int32("type_id", typeID),
			zap.Int32("region_id", regionID),
			zap.String("side", string(side)),
			zap.Int("attempt", res.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, c.retry.backOff(ctx), notify); err != nil {
		metrics.ESIExhausted.WithLabelValues(string(side)).Inc()
		logger.Error("ESI", "Giving up on order fetch",
			zap.Int32("type_id", typeID),
			zap.Int32("region_id", regionID),
			zap.String("side", string(side)),
			zap.Int("attempts", res.Attempts),
			zap.Error(err),
		)
		res.Prices = nil
		res.Err = err
	}
	return res
}
