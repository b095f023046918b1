package domain

import "time"

// Exchange is one question/response turn in a consultation session.
type Exchange struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsultationSession is the per-conversation memory for follow-up
// questions. Owned exclusively by the session store.
type ConsultationSession struct {
	ID           string     `json:"id"`
	History      []Exchange `json:"history"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}
