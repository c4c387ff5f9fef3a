package pantry

import (
	"math"
	"time"
)

// expiringSoonDays is how far ahead a best-before date counts as expiring soon.
const expiringSoonDays = 7

// ExpiryWarning describes how close a best-before date (MHD) is.
type ExpiryWarning struct {
	DaysUntilExpiry int  `json:"daysUntilExpiry"`
	Expired         bool `json:"expired"`
	ExpiringSoon    bool `json:"expiringSoon"`
}

// CheckExpiry compares expiry with now. Partial days round up: a date that passed less than
// a day ago is still zero days away and not yet expired.
func CheckExpiry(expiry, now time.Time) ExpiryWarning {
	days := int(math.Ceil(expiry.Sub(now).Hours() / 24))
	return ExpiryWarning{
		DaysUntilExpiry: days,
		Expired:         days < 0,
		ExpiringSoon:    days >= 0 && days <= expiringSoonDays,
	}
}
