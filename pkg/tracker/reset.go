package tracker

import "time"

// sameCalendarDay compares local calendar dates, not elapsed duration: a
// session spanning 23:59 to 00:01 rolls the day.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// checkAndApplyReset runs the day-boundary transition when the calendar date
// of lastOpen differs from now: habits shift their history window and settle
// streaks, completed tasks are pruned. On the same calendar day only the
// timestamp refreshes, keeping it monotonic without a separate field.
// Returns whether a reset happened and the new lastOpen value.
func checkAndApplyReset(habits *HabitEngine, plan *PlanEngine, lastOpen, now time.Time) (bool, time.Time) {
	if !lastOpen.IsZero() && sameCalendarDay(lastOpen, now) {
		return false, now
	}
	if lastOpen.IsZero() {
		// First ever activation: nothing to close out.
		return false, now
	}

	habits.rollDay()
	plan.pruneCompleted()
	return true, now
}
