package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
)

func activeSession() *model.Session {
	return &model.Session{
		Date:                time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartMinute:         540,
		EndMinute:           1020,
		AvgConsultationMins: 20,
		Status:              model.SessionStatusActive,
	}
}

func TestComputeSlots(t *testing.T) {
	slots := ComputeSlots(activeSession(), 0)
	require.Len(t, slots, 24)

	assert.Equal(t, 1, slots[0].SlotNumber)
	assert.Equal(t, 540, slots[0].ScheduledMinute)
	assert.Equal(t, "09:00", slots[0].ScheduledClock)
	assert.False(t, slots[0].Booked)

	last := slots[len(slots)-1]
	assert.Equal(t, 24, last.SlotNumber)
	assert.Equal(t, 1000, last.ScheduledMinute)
	assert.Equal(t, "16:40", last.ScheduledClock)
}

func TestComputeSlotsBookedPrefix(t *testing.T) {
	slots := ComputeSlots(activeSession(), 3)
	require.Len(t, slots, 24)

	for i, slot := range slots {
		if i < 3 {
			assert.True(t, slot.Booked, "slot %d should be booked", slot.SlotNumber)
		} else {
			assert.False(t, slot.Booked, "slot %d should be free", slot.SlotNumber)
		}
	}
}

func TestComputeSlotsDeterministic(t *testing.T) {
	a := ComputeSlots(activeSession(), 5)
	b := ComputeSlots(activeSession(), 5)
	assert.Equal(t, a, b)
}

func TestComputeSlotsNonActiveSession(t *testing.T) {
	s := activeSession()
	s.Status = model.SessionStatusCancelled
	assert.Nil(t, ComputeSlots(s, 0))

	s.Status = model.SessionStatusCompleted
	assert.Nil(t, ComputeSlots(s, 0))

	assert.Nil(t, ComputeSlots(nil, 0))
}

func TestComputeSlotsZeroCapacity(t *testing.T) {
	s := activeSession()
	s.EndMinute = s.StartMinute + 10
	assert.Nil(t, ComputeSlots(s, 0))
}
