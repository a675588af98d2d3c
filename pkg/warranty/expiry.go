package warranty

import "time"

// expiringSoonDays is the inclusive window, in days, before expiry during
// which an item counts as EXPIRING_SOON.
const expiringSoonDays = 30

// addMonths adds calendar months, clamping the day of month to the last day
// of the target month instead of letting it roll over. 2024-01-31 plus one
// month is 2024-02-29, not 2024-03-02.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), time.Month(int(t.Month())+months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// ComputeExpiry derives the expiry date from the purchase date and warranty
// period. A nil purchase date yields a nil expiry.
func ComputeExpiry(purchaseDate *time.Time, periodMonths int) *time.Time {
	if purchaseDate == nil {
		return nil
	}
	expiry := addMonths(*purchaseDate, periodMonths)
	return &expiry
}

// DaysUntil returns the whole calendar days from now's date to expiry's
// date. Negative means the expiry date has passed.
func DaysUntil(now, expiry time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	expiryDate := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiryDate.Sub(nowDate).Hours() / 24)
}

// StatusOf classifies an expiry date at the given instant
func StatusOf(expiry *time.Time, now time.Time) Status {
	if expiry == nil {
		return StatusNoExpiry
	}
	days := DaysUntil(now, *expiry)
	switch {
	case days < 0:
		return StatusExpired
	case days <= expiringSoonDays:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}
