package auth

import "time"

// SessionRecord is the audit row of one dashboard sign in.
type SessionRecord struct {
	ID        string
	UserID    int64
	Email     string
	Role      string
	StoreID   *int64
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
