package backtest

import "github.com/atlas-desktop/strategy-backtester/pkg/types"

// Realize resolves intents into the realized per-bar position sequence.
// The state machine starts in CASH and applies every transition with a
// one-bar lag: the intent decided at bar i becomes the realized position at
// bar i+1, so a price change at bar i can never affect the position at bar i.
func Realize(intents []types.PositionState) []types.PositionState {
	positions := make([]types.PositionState, len(intents))
	if len(intents) == 0 {
		return positions
	}

	positions[0] = types.PositionCash
	for i := 1; i < len(intents); i++ {
		positions[i] = intents[i-1]
	}
	return positions
}
