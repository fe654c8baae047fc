package domain

import "time"

// Opportunity is a priced two-venue spread on one pair. Buy is always the
// cheaper venue and Sell the dearer one; SpreadBps is computed as
// round(|pb-ps| * 10000 / min(pb, ps)) on the scaled integer prices.
type Opportunity struct {
	ID         string
	Pair       string
	Buy        VenueQuote
	Sell       VenueQuote
	SpreadBps  int64
	DetectedAt time.Time
}
