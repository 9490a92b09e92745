package entity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// academicDomain matches the institutional suffixes accepted at signup:
// .edu, .edu.<cc> and .ac.<cc>.
var academicDomain = regexp.MustCompile(`\.(edu|edu\.[a-z]{2}|ac\.[a-z]{2})$`)

// Identity is the aggregate root for a registered student.
// Verified is decided once, at construction, from the signup email.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Institution  string    `json:"institution"`
	FieldOfStudy string    `json:"field_of_study"`
	Year         int       `json:"year"`
	Bio          string    `json:"bio"`
	Verified     bool      `json:"verified"`
	Anonymous    bool      `json:"anonymous"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileFields carries the user-supplied part of a signup.
type ProfileFields struct {
	Email        string
	Name         string
	Institution  string
	FieldOfStudy string
	Year         int
	Bio          string
	Anonymous    bool
}

// IsAcademicEmail reports whether email belongs to a recognized academic domain.
func IsAcademicEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return academicDomain.MatchString(email[at+1:])
}

// NewIdentity builds an Identity from signup fields, filling defaults for
// omitted values.
func NewIdentity(f ProfileFields, now time.Time) *Identity {
	year := f.Year
	if year < 1 {
		year = 1
	}
	return &Identity{
		ID:           uuid.NewString(),
		Name:         f.Name,
		Email:        strings.TrimSpace(f.Email),
		Institution:  f.Institution,
		FieldOfStudy: f.FieldOfStudy,
		Year:         year,
		Bio:          f.Bio,
		Verified:     IsAcademicEmail(f.Email),
		Anonymous:    f.Anonymous,
		CreatedAt:    now.UTC(),
	}
}
