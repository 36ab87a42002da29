package availability

import (
	"github.com/medibook/booking-api/internal/model"
)

// ComputeSlots derives the ordered token slots of a session. Pure and
// deterministic: identical inputs always yield identical slots. Slot
// times are minute-of-day integers, so 12-hour and 24-hour source
// clocks that parsed to the same minute produce the same schedule.
//
// A non-active session has no bookable slots. A window too short for
// even one consultation yields an empty list, which callers must
// surface as "no session" rather than "fully booked".
func ComputeSlots(session *model.Session, bookedCount int) []model.TokenSlot {
	if session == nil || session.Status != model.SessionStatusActive {
		return nil
	}

	capacity := session.Capacity()
	if capacity <= 0 {
		return nil
	}

	slots := make([]model.TokenSlot, 0, capacity)
	for n := 1; n <= capacity; n++ {
		minute := session.SlotMinute(n)
		slots = append(slots, model.TokenSlot{
			SlotNumber:      n,
			ScheduledMinute: minute,
			ScheduledClock:  model.FormatClockMinute(minute),
			// Tokens are issued strictly in order, so the first
			// bookedCount slots are exactly the taken ones.
			Booked: n <= bookedCount,
		})
	}
	return slots
}
