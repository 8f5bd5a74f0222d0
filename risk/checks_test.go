package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	p := Policy{MinRR: 2, MaxSLPips: 15}

	t.Run("allowed", func(t *testing.T) {
		d := Evaluate(p, Intent{Side: 1, Entry: 1.1000, Stop: 1.0990, TakeProfit: 1.1025, PipLocation: -4})
		assert.True(t, d.Allowed)
		assert.InDelta(t, 10, d.StopPips, 1e-9)
		assert.InDelta(t, 2.5, d.PlannedRR, 1e-9)
	})

	t.Run("rr below minimum carries the ratio", func(t *testing.T) {
		d := Evaluate(p, Intent{Side: 1, Entry: 1.1000, Stop: 1.0990, TakeProfit: 1.1014, PipLocation: -4})
		v, ok := d.First()
		require.True(t, ok)
		assert.Equal(t, CodeRRTooLow, v.Code)
		assert.Contains(t, v.Msg, "1.40")
	})

	t.Run("stop too wide", func(t *testing.T) {
		d := Evaluate(p, Intent{Side: -1, Entry: 1.1000, Stop: 1.1020, TakeProfit: 1.0900, PipLocation: -4})
		v, _ := d.First()
		assert.Equal(t, CodeStopTooWide, v.Code)
	})

	t.Run("wrong side", func(t *testing.T) {
		d := Evaluate(p, Intent{Side: 1, Entry: 1.1000, Stop: 1.1010, TakeProfit: 1.1050, PipLocation: -4})
		v, _ := d.First()
		assert.Equal(t, CodeInvalidLevels, v.Code)
		assert.Len(t, d.Violations, 1)
	})
}

func TestCheckSize(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRiskPct: 0.02}
	assert.Nil(t, CheckSize(p, Result{Units: 1000, RiskAmount: 100}, 10000))

	v := CheckSize(p, Result{Units: 0}, 10000)
	require.NotNil(t, v)
	assert.Equal(t, CodeNoUnits, v.Code)

	v = CheckSize(p, Result{Units: 10, RiskAmount: 300}, 10000)
	require.NotNil(t, v)
	assert.Equal(t, CodeRiskTooHigh, v.Code)
}

func TestRR(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2, RR(1.1, 1.09, 1.12), 1e-9)
	assert.Zero(t, RR(1.1, 1.1, 1.2))
	assert.InDelta(t, 50, PlannedRisk(10000, 1.1, 1.095, 1), 1e-6)
}
