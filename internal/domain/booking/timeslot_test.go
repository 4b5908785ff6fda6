//go:build unit

package booking_test

import (
	"testing"
	"time"

	"barberbook/internal/domain/booking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlot(t *testing.T, start, end time.Time) booking.TimeSlot {
	t.Helper()
	slot, err := booking.NewTimeSlot(start, end)
	require.NoError(t, err)
	return slot
}

func TestNewTimeSlot(t *testing.T) {
	base := time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC)

	t.Run("start must precede end", func(t *testing.T) {
		_, err := booking.NewTimeSlot(base, base)
		assert.ErrorIs(t, err, booking.ErrInvalidTimeSlot)

		_, err = booking.NewTimeSlot(base.Add(time.Hour), base)
		assert.ErrorIs(t, err, booking.ErrInvalidTimeSlot)
	})

	t.Run("normalizes to UTC", func(t *testing.T) {
		jst := time.FixedZone("JST", 9*3600)
		slot := mustSlot(t, base.In(jst), base.Add(time.Hour).In(jst))
		assert.Equal(t, time.UTC, slot.Start().Location())
		assert.True(t, slot.Start().Equal(base))
	})
}

func TestTimeSlotOverlaps(t *testing.T) {
	base := time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC)
	slot := mustSlot(t, base, base.Add(time.Hour))

	testCases := []struct {
		name     string
		other    booking.TimeSlot
		overlaps bool
	}{
		{
			name:     "identical slot",
			other:    mustSlot(t, base, base.Add(time.Hour)),
			overlaps: true,
		},
		{
			name:     "partial overlap at tail",
			other:    mustSlot(t, base.Add(30*time.Minute), base.Add(90*time.Minute)),
			overlaps: true,
		},
		{
			name:     "containing slot",
			other:    mustSlot(t, base.Add(-time.Hour), base.Add(2*time.Hour)),
			overlaps: true,
		},
		{
			name:     "back-to-back after",
			other:    mustSlot(t, base.Add(time.Hour), base.Add(2*time.Hour)),
			overlaps: false,
		},
		{
			name:     "back-to-back before",
			other:    mustSlot(t, base.Add(-time.Hour), base),
			overlaps: false,
		},
		{
			name:     "disjoint",
			other:    mustSlot(t, base.Add(3*time.Hour), base.Add(4*time.Hour)),
			overlaps: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlaps, slot.Overlaps(tc.other))
			assert.Equal(t, tc.overlaps, tc.other.Overlaps(slot))
		})
	}
}

func TestTimeSlotToTstzrange(t *testing.T) {
	base := time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC)
	slot := mustSlot(t, base, base.Add(30*time.Minute))
	assert.Equal(t, "[2030-06-03T10:00:00Z,2030-06-03T10:30:00Z)", slot.ToTstzrange())
}
