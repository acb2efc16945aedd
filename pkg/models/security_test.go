package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskStats(t *testing.T) {
	tests := []struct {
		name      string
		stats     RiskStats
		wantWorst float64
		wantBest  float64
	}{
		{"partially mitigated", RiskStats{Complexity: 3, Mitigated: 1, Potential: 1, Hits: 4}, 2.25, 1.5},
		{"unmitigated", RiskStats{Complexity: 2, Hits: 3}, 2, 2},
		{"fully mitigated", RiskStats{Complexity: 5, Mitigated: 2, Hits: 2}, 0, 0},
		{"no hits", RiskStats{Complexity: 4}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantWorst, tt.stats.Worst(), 1e-9)
			assert.InDelta(t, tt.wantBest, tt.stats.Best(), 1e-9)
			assert.GreaterOrEqual(t, tt.stats.Worst(), tt.stats.Best())
		})
	}
}

func TestRiskStatsAdd(t *testing.T) {
	s := RiskStats{}
	s.Add(RiskStats{Complexity: 3, Mitigated: 1, Hits: 2})
	s.Add(RiskStats{Complexity: 7, Potential: 1, Hits: 2})
	assert.Equal(t, RiskStats{Complexity: 3, Mitigated: 1, Potential: 1, Hits: 4}, s)
}
