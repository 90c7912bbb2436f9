package models

// Interest is static reference data; the slug is unique.
type Interest struct {
	ID       int    `db:"id" json:"id"`
	Slug     string `db:"slug" json:"slug"`
	Name     string `db:"name" json:"name"`
	Grouping string `db:"grouping" json:"grouping"`
	Premium  bool   `db:"premium" json:"premium"`
}

// UserInterest is a membership edge, written elsewhere and only read here by
// the shared-interest gate.
type UserInterest struct {
	UserID       int    `db:"user_id" json:"user_id"`
	InterestSlug string `db:"interest_slug" json:"interest_slug"`
}
