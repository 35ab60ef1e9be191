package model

import "time"

// UserStatus is the account state stored in users.status.  Only ACTIVE
// accounts may authenticate.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserInactive  UserStatus = "INACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

// User mirrors the `users` table.  PasswordHash and RefreshTokenHash are
// tagged out of JSON so a User can never leak them through a response or
// a cache entry.
//
// Fields:
//  ID               – uuid primary key.
//  Name             – display name.
//  Email            – unique, lower-cased address.
//  PasswordHash     – bcrypt hash.
//  Verified         – email ownership confirmed through an OTP.
//  Status           – ACTIVE, INACTIVE or SUSPENDED.
//  RefreshTokenHash – SHA-256 of the single live refresh token (empty after logout).
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Verified         bool       `json:"verified"`
	Status           UserStatus `json:"status"`
	RefreshTokenHash string     `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Profile is the cacheable projection of a user.  It carries no secret
// material, so it is the only user shape written to the cache.
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Verified  bool       `json:"verified"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Profile returns the secret-free projection of u.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Verified:  u.Verified,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// OTP models a row of the `otps` table.  One code per email; the code
// itself is stored hashed.
type OTP struct {
	Email     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}
