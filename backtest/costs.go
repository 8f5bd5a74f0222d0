package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/mglavinic86/Ai-Trader-sub000/market"
	"github.com/mglavinic86/Ai-Trader-sub000/smc"
)

// StandardLot is the unit count commission is quoted against.
const StandardLot = 100000

// Costs models execution costs. Half the spread plus slippage is charged
// against the trader on every fill; commission is per standard lot round
// turn.
type Costs struct {
	Instrument       string
	SpreadPips       float64
	SlippagePips     float64
	CommissionPerLot float64
}

func (c Costs) adverse() float64 {
	return market.FromPips(c.Instrument, c.SpreadPips/2+c.SlippagePips)
}

// Entry is the effective fill price for opening at raw.
func (c Costs) Entry(raw float64, d smc.Direction) float64 {
	return raw + d.Sign()*c.adverse()
}

// Exit is the effective fill price for closing at raw.
func (c Costs) Exit(raw float64, d smc.Direction) float64 {
	return raw - d.Sign()*c.adverse()
}

// Commission is the round-turn charge for units, rounded to cents.
func (c Costs) Commission(units float64) decimal.Decimal {
	return decimal.NewFromFloat(units / StandardLot * c.CommissionPerLot).Round(2)
}

// PnL is the account-currency profit of moving units from entry to exit,
// rounded to cents.
func PnL(d smc.Direction, units, entry, exit, quoteToAccount float64) decimal.Decimal {
	return decimal.NewFromFloat(d.Sign() * units * (exit - entry) * quoteToAccount).Round(2)
}
