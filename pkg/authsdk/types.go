package authsdk

import (
	"context"
	"time"
)

// ============================================================================
// Identity Types
// ============================================================================

// User is the identity provider's account, as the application sees it.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Session is a signed-in user's token pair.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
}

// Profile is the application-owned record keyed 1:1 by user id. FullName is
// derived from FirstName and LastName and cannot be set directly.
type Profile struct {
	ID                    string    `json:"id"`
	FirstName             string    `json:"firstName"`
	LastName              string    `json:"lastName"`
	FullName              string    `json:"fullName"`
	Gender                string    `json:"gender,omitempty"`
	CountryCode           string    `json:"countryCode,omitempty"`
	Phone                 string    `json:"phone,omitempty"`
	DateOfBirth           string    `json:"dateOfBirth,omitempty"`
	BloodType             string    `json:"bloodType,omitempty"`
	Allergies             []string  `json:"allergies"`
	ChronicConditions     []string  `json:"chronicConditions"`
	HeightCM              *float64  `json:"heightCm,omitempty"`
	WeightKG              *float64  `json:"weightKg,omitempty"`
	EmergencyContactName  string    `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string    `json:"emergencyContactPhone,omitempty"`
	InsuranceProvider     string    `json:"insuranceProvider,omitempty"`
	InsurancePolicyNumber string    `json:"insurancePolicyNumber,omitempty"`
	AvatarURL             string    `json:"avatarUrl,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ProfileUpdate is a partial profile update. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName             *string   `json:"firstName,omitempty"`
	LastName              *string   `json:"lastName,omitempty"`
	Gender                *string   `json:"gender,omitempty"`
	CountryCode           *string   `json:"countryCode,omitempty"`
	Phone                 *string   `json:"phone,omitempty"`
	DateOfBirth           *string   `json:"dateOfBirth,omitempty"`
	BloodType             *string   `json:"bloodType,omitempty"`
	Allergies             *[]string `json:"allergies,omitempty"`
	ChronicConditions     *[]string `json:"chronicConditions,omitempty"`
	HeightCM              *float64  `json:"heightCm,omitempty"`
	WeightKG              *float64  `json:"weightKg,omitempty"`
	EmergencyContactName  *string   `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone *string   `json:"emergencyContactPhone,omitempty"`
	InsuranceProvider     *string   `json:"insuranceProvider,omitempty"`
	InsurancePolicyNumber *string   `json:"insurancePolicyNumber,omitempty"`
	AvatarURL             *string   `json:"avatarUrl,omitempty"`
}

// IsEmpty reports whether u changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u == ProfileUpdate{}
}

// ============================================================================
// Requests
// ============================================================================

// SignUpInput is the registration form. Every field except CaptchaToken is
// required.
type SignUpInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	DateOfBirth  string // YYYY-MM-DD
	Gender       string
	CountryCode  string // calling code, e.g. "+44"
	Phone        string
	CaptchaToken string
}

type SignInInput struct {
	Email        string
	Password     string
	CaptchaToken string
}

// SignUpResult carries the new user. Session is nil when the provider
// requires e-mail confirmation before the first sign-in.
type SignUpResult struct {
	User    User
	Session *Session
}

// ============================================================================
// Auth State
// ============================================================================

type Status string

const (
	StatusSignedOut      Status = "signed_out"
	StatusAuthenticating Status = "authenticating"
	StatusSignedIn       Status = "signed_in"
	StatusError          Status = "error"
)

// AuthState is the composite snapshot published to subscribers. It is never
// persisted; it can always be rebuilt from the session and profile.
type AuthState struct {
	Status  Status   `json:"status"`
	User    *User    `json:"user"`
	Session *Session `json:"session"`
	Profile *Profile `json:"profile"`
	Loading bool     `json:"loading"`
	Err     *Error   `json:"error,omitempty"`
}

// Event names the transition that produced an AuthState.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
	EventUserUpdated    Event = "USER_UPDATED"
	EventProfileUpdated Event = "PROFILE_UPDATED"
	EventAuthError      Event = "AUTH_ERROR"
)

// Listener receives every published AuthState. Listeners run synchronously
// on the goroutine that caused the transition and must not call back into
// the Service's mutating methods.
type Listener func(ctx context.Context, event Event, state AuthState)
