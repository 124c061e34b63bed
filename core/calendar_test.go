package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonthGrid(t *testing.T) {
	tests := []struct {
		year    int
		month   time.Month
		leading int
		days    int
		weeks   int
	}{
		{2025, time.March, 6, 31, 6},
		{2026, time.February, 0, 28, 4},
		{2024, time.February, 4, 29, 5},
	}
	for _, tt := range tests {
		t.Run(time.Date(tt.year, tt.month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"), func(t *testing.T) {
			grid := NewMonthGrid(tt.year, tt.month)
			assert.Equal(t, tt.leading, grid.Leading)
			assert.Equal(t, tt.days, grid.Days)
			assert.Len(t, grid.Weeks(), tt.weeks)
		})
	}
}

func TestMonthGrid_Weeks(t *testing.T) {
	weeks := NewMonthGrid(2025, time.March).Weeks()
	require.Len(t, weeks, 6)
	assert.Equal(t, [7]int{0, 0, 0, 0, 0, 0, 1}, weeks[0])
	assert.Equal(t, [7]int{2, 3, 4, 5, 6, 7, 8}, weeks[1])
	assert.Equal(t, [7]int{30, 31, 0, 0, 0, 0, 0}, weeks[5])
}
