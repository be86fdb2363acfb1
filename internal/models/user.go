package models

// User is the local profile replica used to enrich message payloads.
type User struct {
	ID       int     `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Username string  `db:"username" json:"username"`
	Image    *string `db:"image" json:"image"`
}
