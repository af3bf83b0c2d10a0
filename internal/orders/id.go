package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// IDGenerator mints order ids of the form <prefix>-<yyyyMMdd>-<NNNN>, dated in loc.
type IDGenerator struct {
	prefix string
	loc    *time.Location
	randN  func(n int) int
}

// NewIDGenerator returns a generator using math/rand for the numeric suffix.
func NewIDGenerator(prefix string, loc *time.Location) *IDGenerator {
	if prefix == "" {
		prefix = "ORD"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &IDGenerator{prefix: prefix, loc: loc, randN: rand.IntN}
}

// Next returns a fresh id for an order created at now.
func (g *IDGenerator) Next(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", g.prefix, now.In(g.loc).Format("20060102"), g.randN(10000))
}

// LineItemID is <orderId>-<seq>, seq starting at 1.
func LineItemID(orderID string, seq int) string {
	return fmt.Sprintf("%s-%d", orderID, seq)
}
