package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a human identity, unique by email. AuthUserID links it to the
// auth provider's user once that user signs in for the first time.
type Profile struct {
	ID         uuid.UUID
	AuthUserID *uuid.UUID
	Email      string
	FirstName  *string
	LastName   *string
	Phone      *string
	Locale     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
