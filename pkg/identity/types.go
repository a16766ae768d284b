package identity

import (
	"context"
	"time"
)

// Identity is one login method bound to a user. A sign-up response whose
// user carries no identities means the address is already registered.
type Identity struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id,omitempty"`
	UserID     string `json:"user_id"`
	Provider   string `json:"provider"`
}

// User is owned by the identity provider.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone,omitempty"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	Identities       []Identity     `json:"identities"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Session is the token pair held for a signed-in user.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// ExpiresAt is unix seconds. The provider sends it on most responses;
	// the client fills it in from ExpiresIn or the token's exp otherwise.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	User User `json:"user"`
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Event names an auth-state transition pushed by a Provider.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Listener receives provider events. session is nil for EventSignedOut.
type Listener func(ctx context.Context, event Event, session *Session)

type SignUpParams struct {
	Email        string
	Password     string
	Data         map[string]any // stored as user metadata
	CaptchaToken string
}

type SignInParams struct {
	Email        string
	Password     string
	CaptchaToken string
}

// UserAttributes are the mutable user fields. Empty fields are not sent.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Provider is the identity capability the application consumes.
type Provider interface {
	// SignUp registers a user. The session is nil when the provider requires
	// e-mail confirmation first.
	SignUp(ctx context.Context, p SignUpParams) (*User, *Session, error)
	SignInWithPassword(ctx context.Context, p SignInParams) (*Session, error)
	SignOut(ctx context.Context) error
	// GetSession returns the held session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// GetUser resolves token to its user. An empty token means the held
	// session's access token.
	GetUser(ctx context.Context, token string) (*User, error)
	RefreshSession(ctx context.Context) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error)
	// OnAuthStateChange registers l and returns a function removing it.
	OnAuthStateChange(l Listener) (unsubscribe func())
}

// ProfileRow is a profiles table row as stored remotely (snake_case).
type ProfileRow struct {
	ID                    string    `json:"id"`
	FirstName             string    `json:"first_name"`
	LastName              string    `json:"last_name"`
	FullName              string    `json:"full_name"`
	Gender                string    `json:"gender"`
	CountryCode           string    `json:"country_code"`
	Phone                 string    `json:"phone"`
	DateOfBirth           string    `json:"date_of_birth"`
	BloodType             string    `json:"blood_type"`
	Allergies             []string  `json:"allergies"`
	ChronicConditions     []string  `json:"chronic_conditions"`
	HeightCM              *float64  `json:"height_cm"`
	WeightKG              *float64  `json:"weight_kg"`
	EmergencyContactName  string    `json:"emergency_contact_name"`
	EmergencyContactPhone string    `json:"emergency_contact_phone"`
	InsuranceProvider     string    `json:"insurance_provider"`
	InsurancePolicyNumber string    `json:"insurance_policy_number"`
	AvatarURL             string    `json:"avatar_url"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ProfilePatch is a partial update keyed by column name. Only columns in
// ProfileColumns may appear.
type ProfilePatch map[string]any

// ProfileColumns are the writable profile columns.
var ProfileColumns = []string{
	"first_name", "last_name", "full_name", "gender", "country_code", "phone",
	"date_of_birth", "blood_type", "allergies", "chronic_conditions",
	"height_cm", "weight_kg", "emergency_contact_name", "emergency_contact_phone",
	"insurance_provider", "insurance_policy_number", "avatar_url",
}

// ProfileTable is the row-level profile store keyed by user id.
type ProfileTable interface {
	SelectProfile(ctx context.Context, userID string) (ProfileRow, error)
	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (ProfileRow, error)
}
