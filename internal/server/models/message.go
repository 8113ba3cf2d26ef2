package models

import "time"

// Message is one stored message row. Group sends fan out as one row per
// recipient. ID and SentAt are assigned by the store; Delivered only ever
// transitions false→true.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Content   string
	SentAt    time.Time
	Delivered bool
}

// UserStats aggregates a user's outbound traffic: how many messages they
// have sent and when the last one was sent (LastSent is zero when none).
type UserStats struct {
	SentCount int64
	LastSent  time.Time
}
