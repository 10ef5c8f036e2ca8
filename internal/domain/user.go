package domain

import "time"

// User is a member of one or more groups who can be assigned tasks.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
