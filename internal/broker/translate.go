package broker

import (
	"fmt"
	"time"

	"tradelink/internal/domain"
	"tradelink/internal/venue"
)

// Translation tables from engine-native order fields to venue codes. Every
// valid combination is enumerated here; hitting a missing entry is a
// programming error, not a runtime condition, and panics.

var venueOrderTypes = map[domain.OrderKind]venue.OrderType{
	domain.OrderKindMarket:    venue.OrderTypeMarket,
	domain.OrderKindClose:     venue.OrderTypeMarket,
	domain.OrderKindLimit:     venue.OrderTypeLimit,
	domain.OrderKindStop:      venue.OrderTypeStopMarket,
	domain.OrderKindStopLimit: venue.OrderTypeStopLimit,
}

var venueSides = map[domain.Side]venue.OrderSide{
	domain.SideBuy:  venue.OrderSideBuy,
	domain.SideSell: venue.OrderSideSell,
}

var venueTimeRestrictions = map[domain.ValidityKind]venue.TimeRestriction{
	domain.ValidityNone:     venue.TimeRestrictionNone,
	domain.ValidityDate:     venue.TimeRestrictionDate,
	domain.ValidityDuration: venue.TimeRestrictionDate,
	domain.ValidityDay:      venue.TimeRestrictionSession,
}

// buildRequest translates an order into the venue-native request. Pure: no
// I/O, no adapter state beyond the account name; now anchors duration-bound
// validities.
func buildRequest(account string, o *domain.Order, extra map[string]any, now time.Time) venue.OrderRequest {
	ot, ok := venueOrderTypes[o.Kind]
	if !ok {
		panic(fmt.Sprintf("broker: no venue order type mapped for kind %q", o.Kind))
	}
	side, ok := venueSides[o.Side]
	if !ok {
		panic(fmt.Sprintf("broker: no venue side mapped for %q", o.Side))
	}

	req := venue.OrderRequest{
		Account:           account,
		SymbolCode:        o.Instrument.Code,
		OrderType:         ot,
		OrderSide:         side,
		Volume:            o.Size,
		VolumeRestriction: venue.VolumeRestrictionNone,
	}
	if o.TradeID != 0 {
		req.ExtendedInfo = fmt.Sprintf("TradeId %d", o.TradeID)
	}

	switch o.Kind {
	case domain.OrderKindMarket, domain.OrderKindClose:
		// No price fields.
	case domain.OrderKindLimit:
		// Both price field names are accepted for compatibility with
		// call sites that set the limit through either one.
		req.Price = o.Price
		if req.Price == 0 {
			req.Price = o.LimitPrice
		}
	case domain.OrderKindStop:
		req.StopPrice = o.Price
	case domain.OrderKindStopLimit:
		req.StopPrice = o.Price
		req.Price = o.LimitPrice
	}

	// A close order always runs in the closing auction, whatever validity
	// the caller supplied.
	if o.Kind == domain.OrderKindClose {
		req.TimeRestriction = venue.TimeRestrictionCloseAuction
	} else {
		tr, ok := venueTimeRestrictions[o.Validity.Kind]
		if !ok {
			panic(fmt.Sprintf("broker: no venue time restriction mapped for validity kind %d", o.Validity.Kind))
		}
		req.TimeRestriction = tr

		switch o.Validity.Kind {
		case domain.ValidityDate:
			req.ValidDate = o.Validity.Date
		case domain.ValidityDuration:
			if o.Validity.Duration == domain.OneDay {
				// Exactly one trading day is a session order, not a
				// dated one.
				req.TimeRestriction = venue.TimeRestrictionSession
			} else {
				req.ValidDate = now.Add(o.Validity.Duration)
			}
		}
	}

	for field, value := range extra {
		req.Apply(field, value)
	}

	return req
}
