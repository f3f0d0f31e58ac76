package entitlement

import "time"

// Grant entitles a user to a plan's features until expiry. Later grants for
// the same user supersede earlier ones; grants are never merged.
type Grant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PlanID    string    `json:"planId"`
	GrantedAt time.Time `json:"grantedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidAt reports whether the grant entitles the given user at the given
// instant.
func (g Grant) ValidAt(userID string, now time.Time) bool {
	return g.UserID == userID && now.Before(g.ExpiresAt)
}
