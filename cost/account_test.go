package cost_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeforge-ai/orchestrator/cost"
)

func TestCanAffordAndCharge(t *testing.T) {
	a := cost.New(0.10)
	require.True(t, a.CanAfford(0.05))
	require.NoError(t, a.Charge(cost.Turn{Agent: "coder", Dollars: 0.05}))

	totals := a.Totals()
	require.InDelta(t, 0.05, totals.Dollars, 1e-9)
}

func TestChargeRefusedOverCeiling(t *testing.T) {
	// Scenario 5 from spec.md §8: ceiling $0.10, $0.05 already spent,
	// second turn projects $0.08.
	a := cost.New(0.10)
	require.NoError(t, a.Charge(cost.Turn{Agent: "coder", Dollars: 0.05}))

	require.False(t, a.CanAfford(0.08))
	err := a.Charge(cost.Turn{Agent: "reviewer", Dollars: 0.08})
	require.ErrorIs(t, err, cost.ErrBudgetExceeded)

	totals := a.Totals()
	require.InDelta(t, 0.05, totals.Dollars, 1e-9, "refused charge must not be applied")
	require.True(t, a.Exceeded())
}

func TestZeroCeilingNeverAffordable(t *testing.T) {
	a := cost.New(0)
	require.False(t, a.CanAfford(0.0001))
}

func TestTotalsEqualSumOfCharges(t *testing.T) {
	a := cost.New(10)
	charges := []cost.Turn{
		{Agent: "architect", Dollars: 1.5, TokensIn: 100, TokensOut: 50},
		{Agent: "coder", Dollars: 2.25, TokensIn: 200, TokensOut: 80},
		{Agent: "architect", Dollars: 0.75, TokensIn: 20, TokensOut: 10},
	}
	var want float64
	for _, c := range charges {
		require.NoError(t, a.Charge(c))
		want += c.Dollars
	}
	totals := a.Totals()
	require.InDelta(t, want, totals.Dollars, 1e-9)
	require.Equal(t, 2, totals.PerAgent["architect"].Turns)
	require.Equal(t, 1, totals.PerAgent["coder"].Turns)
}

func TestMergeSumsSlices(t *testing.T) {
	parent := cost.New(10)
	slice1 := parent.Slice()
	slice2 := parent.Slice()
	require.NoError(t, slice1.Charge(cost.Turn{Agent: "coder", Dollars: 1}))
	require.NoError(t, slice2.Charge(cost.Turn{Agent: "coder", Dollars: 2}))

	parent.Merge(slice1)
	parent.Merge(slice2)

	require.InDelta(t, 3, parent.Totals().Dollars, 1e-9)
	require.Equal(t, 2, parent.Totals().PerAgent["coder"].Turns)
}

func TestCanAffordAgainstIsCooperative(t *testing.T) {
	parent := cost.New(1.0)
	require.NoError(t, parent.Charge(cost.Turn{Agent: "architect", Dollars: 0.6}))

	slice := parent.Slice()
	require.True(t, slice.CanAffordAgainst(parent, 0.3))
	require.False(t, slice.CanAffordAgainst(parent, 0.5))
}
