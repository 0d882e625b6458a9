package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalCents(t *testing.T) {
	pricer, err := NewPricer("2")
	require.NoError(t, err)

	tests := []struct {
		name  string
		lines []PricedLine
		want  int64
	}{
		{
			name:  "single line whole cents",
			lines: []PricedLine{{PriceCents: 1000, Quantity: 3}},
			want:  3060, // (1000 + 20) * 3
		},
		{
			name: "multiple lines",
			lines: []PricedLine{
				{PriceCents: 1000, Quantity: 2},
				{PriceCents: 2500, Quantity: 1},
			},
			want: 2040 + 2550,
		},
		{
			name:  "free tickets carry no fee",
			lines: []PricedLine{{PriceCents: 0, Quantity: 4}},
			want:  0,
		},
		{
			name:  "fractional fee rounds once at the end",
			lines: []PricedLine{{PriceCents: 999, Quantity: 1}},
			want:  1019, // 999 + 19.98 = 1018.98
		},
		{
			name: "fractions accumulate before rounding",
			lines: []PricedLine{
				{PriceCents: 25, Quantity: 1},
				{PriceCents: 25, Quantity: 1},
			},
			// 25.5 + 25.5 = 51 exactly; per-line rounding would give 52
			want: 51,
		},
		{
			name:  "empty cart",
			lines: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pricer.TotalCents(tt.lines))
		})
	}
}

func TestNewPricer(t *testing.T) {
	t.Run("rejects negative fee", func(t *testing.T) {
		_, err := NewPricer("-1")
		assert.Error(t, err)
	})

	t.Run("rejects malformed fee", func(t *testing.T) {
		_, err := NewPricer("two")
		assert.Error(t, err)
	})

	t.Run("zero fee charges face value", func(t *testing.T) {
		pricer, err := NewPricer("0")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), pricer.TotalCents([]PricedLine{{PriceCents: 2500, Quantity: 2}}))
	})
}
