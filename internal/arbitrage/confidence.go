package arbitrage

import "liquidityArb/internal/model"

// ClassifyConfidence buckets an opportunity by combined execution probability and net
// profit percentage. Both bounds of a level are exclusive.
func ClassifyConfidence(executionProb, netProfitPct float64) model.ConfidenceLevel {
	switch {
	case executionProb > 0.8 && netProfitPct > 1.0:
		return model.VeryHigh
	case executionProb > 0.6 && netProfitPct > 0.5:
		return model.High
	case executionProb > 0.4 && netProfitPct > 0.3:
		return model.Medium
	case executionProb > 0.2:
		return model.Low
	default:
		return model.VeryLow
	}
}

// IsExecutable reports whether the opportunity clears both thresholds, inclusively.
func IsExecutable(opp model.ArbitrageOpportunity, minEVScore, minNetProfitPct float64) bool {
	return opp.EVScore >= minEVScore && opp.NetProfitPct >= minNetProfitPct
}
