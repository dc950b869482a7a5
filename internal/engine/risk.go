package engine

import (
	"fmt"

	"tradelink/internal/broker"
	"tradelink/internal/domain"
)

// RiskManager enforces pre-trade risk rules: position sizing limits and a
// maximum daily loss constraint.
type RiskManager struct {
	maxPositionPct  float64
	maxDailyLossPct float64
}

// NewRiskManager creates a RiskManager with the specified risk thresholds.
//
//   - maxPositionPct: maximum fraction of equity allowed in a single position
//     (e.g. 0.10 for 10%).
//   - maxDailyLossPct: maximum fraction of equity that may be lost in a single
//     trading day (e.g. 0.02 for 2%).
//
// A threshold of zero disables the corresponding check.
func NewRiskManager(maxPositionPct, maxDailyLossPct float64) *RiskManager {
	return &RiskManager{
		maxPositionPct:  maxPositionPct,
		maxDailyLossPct: maxDailyLossPct,
	}
}

// CheckOrder evaluates whether the proposed order complies with the
// configured risk limits given the current account state and the realized
// loss accumulated so far today.
func (rm *RiskManager) CheckOrder(intent broker.Intent, side domain.Side, acct *domain.AccountInfo, realized float64) error {
	equity := acct.NetWorth
	if equity <= 0 {
		// No balance event received yet; nothing sensible to check against.
		return nil
	}

	if rm.maxDailyLossPct > 0 && -realized >= rm.maxDailyLossPct*equity {
		return fmt.Errorf("daily loss %.2f exceeds %.1f%% of equity %.2f",
			-realized, rm.maxDailyLossPct*100, equity)
	}

	if rm.maxPositionPct > 0 {
		price := intent.Price
		if price == 0 {
			price = intent.LimitPrice
		}
		if price > 0 {
			// Market orders with no reference price skip the notional check.
			notional := intent.Size * price
			if notional > rm.maxPositionPct*equity {
				return fmt.Errorf("%s %s notional %.2f exceeds %.1f%% of equity %.2f",
					side, intent.Instrument.Code, notional,
					rm.maxPositionPct*100, equity)
			}
		}
	}
	return nil
}
