package model

import "time"

// Visibility controls who may read a project.  PUBLIC projects are
// readable by any authenticated user, PRIVATE ones only by members.
type Visibility string

const (
	Public  Visibility = "PUBLIC"
	Private Visibility = "PRIVATE"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool { return v == Public || v == Private }

// Project mirrors the `projects` table.  The owner is also stored as an
// ADMIN membership row; OwnerID is only consulted to protect that row.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	OwnerID     string     `json:"ownerId"`
	IsDeleted   bool       `json:"-"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
