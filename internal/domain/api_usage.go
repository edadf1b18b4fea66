package domain

// DefaultDailyLimit is the AbuseIPDB free-tier daily request limit, used
// when the backend omits total_limit.
const DefaultDailyLimit = 1000

type ApiUsageStatus struct {
	TotalLimit        int     `json:"total_limit"`
	RemainingRequests int     `json:"remaining_requests"`
	NextReset         *string `json:"next_reset,omitempty"`
	LastReset         *string `json:"last_reset,omitempty"`
}

func (u *ApiUsageStatus) normalize() {
	if u.TotalLimit <= 0 {
		u.TotalLimit = DefaultDailyLimit
	}
	if u.RemainingRequests < 0 {
		u.RemainingRequests = 0
	}
	if u.NextReset != nil && *u.NextReset == "" {
		u.NextReset = nil
	}
}

// Normalize fills defaults on a status received outside a ResultSet.
func (u *ApiUsageStatus) Normalize() {
	if u != nil {
		u.normalize()
	}
}
