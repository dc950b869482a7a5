// Package comm provides the pluggable commission schemes attached to orders
// and the resolver that picks one per instrument.
package comm

import (
	"math"

	"tradelink/internal/domain"
)

// Compile-time interface checks.
var _ domain.CommissionInfo = (*Scheme)(nil)
var _ domain.CommissionInfo = (*Approx)(nil)

// Scheme is a configurable commission scheme. Rate is charged per unit, or
// as a fraction of traded value when Percent is set. Mult is the contract
// point value; StockLike switches the cost basis between cash-for-shares and
// multiplier contracts.
type Scheme struct {
	Rate      float64
	Percent   bool
	Mult      float64
	StockLike bool
}

// NewStockScheme returns a stock-like scheme with the given commission rate.
func NewStockScheme(rate float64, percent bool) *Scheme {
	return &Scheme{Rate: rate, Percent: percent, Mult: 1, StockLike: true}
}

// NewFuturesScheme returns a multiplier-based scheme with a fixed per-unit
// commission.
func NewFuturesScheme(rate, mult float64) *Scheme {
	return &Scheme{Rate: rate, Mult: mult}
}

// Commission returns the commission for trading size at price.
func (s *Scheme) Commission(size, price float64) float64 {
	if s.Percent {
		return math.Abs(size) * price * s.Rate
	}
	return math.Abs(size) * s.Rate
}

// OperationCost returns the cash needed to carry out the operation.
func (s *Scheme) OperationCost(size, price float64) float64 {
	if s.StockLike {
		return math.Abs(size) * price
	}
	return math.Abs(size) * price * s.Mult
}

// ProfitAndLoss returns the realized result of closing size contracts
// entered at avgPrice and exited at price.
func (s *Scheme) ProfitAndLoss(size, avgPrice, price float64) float64 {
	return size * (price - avgPrice) * s.Mult
}

// ValueSize returns the margin-equivalent value of size at price.
func (s *Scheme) ValueSize(size, price float64) float64 {
	return s.OperationCost(size, price)
}

// Approx is the synthesized default scheme used when no commission scheme is
// configured for an instrument. The venue does not report commissions or
// margin, so commissions are zero and both cost and value degrade to the
// notional |size| * price. These are accepted approximations, not errors;
// configure a Scheme for exact accounting.
type Approx struct {
	Mult float64
}

// Commission always returns 0: the venue does not report commissions.
func (a *Approx) Commission(size, price float64) float64 { return 0 }

// OperationCost approximates the needed cash as the notional value.
func (a *Approx) OperationCost(size, price float64) float64 {
	return math.Abs(size) * price
}

// ProfitAndLoss returns the realized result over the contract multiplier.
func (a *Approx) ProfitAndLoss(size, avgPrice, price float64) float64 {
	return size * (price - avgPrice) * a.Mult
}

// ValueSize approximates the margin as the notional value.
func (a *Approx) ValueSize(size, price float64) float64 {
	return math.Abs(size) * price
}

// Resolver picks the commission scheme for an instrument: an explicit
// per-instrument override first, then the global scheme, then a synthesized
// Approx built from the instrument's metadata. It never returns nil.
//
// Overrides are registered explicitly during setup (SetScheme); resolution
// itself is read-only and safe for concurrent use.
type Resolver struct {
	global       domain.CommissionInfo
	byInstrument map[string]domain.CommissionInfo
}

// NewResolver returns a resolver with the given global scheme. A nil global
// means instruments without an override fall back to the synthesized default.
func NewResolver(global domain.CommissionInfo) *Resolver {
	return &Resolver{
		global:       global,
		byInstrument: make(map[string]domain.CommissionInfo),
	}
}

// SetScheme registers a per-instrument override. Call during setup, before
// the venue session starts delivering events.
func (r *Resolver) SetScheme(code string, ci domain.CommissionInfo) {
	r.byInstrument[code] = ci
}

// Resolve returns the scheme for the instrument.
func (r *Resolver) Resolve(inst *domain.Instrument) domain.CommissionInfo {
	if ci, ok := r.byInstrument[inst.Code]; ok {
		return ci
	}
	if r.global != nil {
		return r.global
	}

	mult := inst.PointValue
	if !inst.Type.FutureLike() || mult == 0 {
		mult = 1
	}
	return &Approx{Mult: mult}
}
