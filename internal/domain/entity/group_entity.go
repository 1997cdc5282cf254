package entity

import "time"

// Group is a set of users sharing expenses. The creator is always the first member.
type Group struct {
	ID        int64
	Name      string
	CreatedBy int64
	CreatedAt time.Time
}

// Member is a group member as listed in group details, ordered by join time.
type Member struct {
	UserID   int64
	Username string
	JoinedAt time.Time
}
