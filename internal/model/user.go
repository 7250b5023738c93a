package model

import "time"

// Gender is the self-reported gender of a user.
type Gender string

// The supported genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the supported genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Role is the part a user plays on the platform. It is fixed at creation
// and cannot be changed through a profile update.
type Role string

// The supported roles.
const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTenant, RoleLandlord, RoleAdmin:
		return true
	}
	return false
}

// CollectionUsers is the document collection holding users.
const CollectionUsers = "users"

// Field names of a user document.
const (
	UserFieldEmail      = "email"
	UserFieldFirstName  = "firstName"
	UserFieldLastName   = "lastName"
	UserFieldPhone      = "phone"
	UserFieldGender     = "gender"
	UserFieldAddress    = "address"
	UserFieldCity       = "city"
	UserFieldState      = "state"
	UserFieldPostalCode = "postalCode"
	UserFieldRole       = "role"
	UserFieldCreatedAt  = "createdAt"
)

// User is a landlord, tenant or administrator.
type User struct {
	ID         string    `mapstructure:"_id" json:"id"`
	Email      string    `mapstructure:"email" json:"email"`
	FirstName  string    `mapstructure:"firstName" json:"firstName"`
	LastName   string    `mapstructure:"lastName" json:"lastName"`
	Phone      string    `mapstructure:"phone" json:"phone"`
	Gender     Gender    `mapstructure:"gender" json:"gender"`
	Address    string    `mapstructure:"address" json:"address,omitempty"`
	City       string    `mapstructure:"city" json:"city"`
	State      string    `mapstructure:"state" json:"state"`
	PostalCode string    `mapstructure:"postalCode" json:"postalCode"`
	Role       Role      `mapstructure:"role" json:"role"`
	CreatedAt  time.Time `mapstructure:"createdAt" json:"createdAt"`
}

// Document converts the user to its stored form. The ID is not part of
// the document; the store assigns it.
func (u *User) Document() map[string]interface{} {
	doc := map[string]interface{}{
		UserFieldEmail:      u.Email,
		UserFieldFirstName:  u.FirstName,
		UserFieldLastName:   u.LastName,
		UserFieldPhone:      u.Phone,
		UserFieldGender:     string(u.Gender),
		UserFieldCity:       u.City,
		UserFieldState:      u.State,
		UserFieldPostalCode: u.PostalCode,
		UserFieldRole:       string(u.Role),
		UserFieldCreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if u.Address != "" {
		doc[UserFieldAddress] = u.Address
	}
	return doc
}
