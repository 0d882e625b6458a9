package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartsAtCombinesDateAndTime(t *testing.T) {
	e := &Event{
		StartDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		StartTime: "19:30",
	}

	assert.Equal(t, time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC), e.StartsAt())
}

func TestStartsAtMalformedTimeIsZero(t *testing.T) {
	e := &Event{
		StartDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		StartTime: "7pm",
	}

	// Zero time sorts before any real clock, so sales are rejected.
	assert.True(t, e.StartsAt().IsZero())
}

func TestEndsAt(t *testing.T) {
	e := &Event{
		EndDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		EndTime: "23:00",
	}

	assert.Equal(t, time.Date(2026, 9, 12, 23, 0, 0, 0, time.UTC), e.EndsAt())
}

func TestInsufficientInventoryErrorMessage(t *testing.T) {
	err := &InsufficientInventoryError{
		TicketTypeID: "tt-1",
		Name:         "GA",
		Requested:    3,
		Available:    1,
	}

	assert.Contains(t, err.Error(), `"GA"`)
	assert.Contains(t, err.Error(), "requested 3")
	assert.Contains(t, err.Error(), "available 1")
}
