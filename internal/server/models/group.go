package models

// Group is a named broadcast list. Membership is recorded in a separate
// relation; there is no removal path for either.
type Group struct {
	ID   int64
	Name string
}
