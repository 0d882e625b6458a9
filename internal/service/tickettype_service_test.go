package service

import (
	"strings"
	"testing"

	"ticketeer/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateTicketTypeInput(t *testing.T) {
	valid := func() *TicketTypeInput {
		return &TicketTypeInput{
			OrganizerID:   "org-1",
			Name:          "General Admission",
			Description:   "Standing room",
			PriceCents:    2500,
			TotalQuantity: 100,
		}
	}

	t.Run("accepts valid input", func(t *testing.T) {
		assert.NoError(t, validateTicketTypeInput(valid()))
	})

	t.Run("accepts free tickets", func(t *testing.T) {
		in := valid()
		in.PriceCents = 0
		assert.NoError(t, validateTicketTypeInput(in))
	})

	t.Run("rejects nil input", func(t *testing.T) {
		assert.ErrorIs(t, validateTicketTypeInput(nil), models.ErrInvalidTicketType)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		in := valid()
		in.Name = ""
		assert.ErrorIs(t, validateTicketTypeInput(in), models.ErrInvalidTicketType)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		in := valid()
		in.PriceCents = -100
		assert.ErrorIs(t, validateTicketTypeInput(in), models.ErrInvalidTicketType)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		in := valid()
		in.TotalQuantity = 0
		assert.ErrorIs(t, validateTicketTypeInput(in), models.ErrInvalidTicketType)
	})

	t.Run("rejects oversized description", func(t *testing.T) {
		in := valid()
		in.Description = strings.Repeat("x", maxDescriptionLen+1)
		assert.ErrorIs(t, validateTicketTypeInput(in), models.ErrInvalidTicketType)
	})

	t.Run("accepts description at the limit", func(t *testing.T) {
		in := valid()
		in.Description = strings.Repeat("x", maxDescriptionLen)
		assert.NoError(t, validateTicketTypeInput(in))
	})
}
