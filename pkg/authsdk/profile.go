package authsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/validate"
)

const (
	MinHeightCM = 30
	MaxHeightCM = 300
	MinWeightKG = 1
	MaxWeightKG = 500
)

// ============================================================================
// Row Mapping
// ============================================================================

// MapProfileRow converts a stored row to a Profile. It and ProfilePatch are
// the only places that know the column names.
func MapProfileRow(row identity.ProfileRow) *Profile {
	p := &Profile{
		ID:                    row.ID,
		FirstName:             row.FirstName,
		LastName:              row.LastName,
		FullName:              row.FullName,
		Gender:                row.Gender,
		CountryCode:           row.CountryCode,
		Phone:                 row.Phone,
		DateOfBirth:           row.DateOfBirth,
		BloodType:             row.BloodType,
		Allergies:             nonNil(row.Allergies),
		ChronicConditions:     nonNil(row.ChronicConditions),
		HeightCM:              row.HeightCM,
		WeightKG:              row.WeightKG,
		EmergencyContactName:  row.EmergencyContactName,
		EmergencyContactPhone: row.EmergencyContactPhone,
		InsuranceProvider:     row.InsuranceProvider,
		InsurancePolicyNumber: row.InsurancePolicyNumber,
		AvatarURL:             row.AvatarURL,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
	if p.FullName == "" {
		p.FullName = fullName(p.FirstName, p.LastName)
	}
	return p
}

// ProfilePatch converts the present fields of u to columns. full_name is
// never part of the result; it is derived on write.
func ProfilePatch(u ProfileUpdate) identity.ProfilePatch {
	p := identity.ProfilePatch{}
	setString := func(col string, v *string) {
		if v != nil {
			p[col] = *v
		}
	}
	setString("first_name", u.FirstName)
	setString("last_name", u.LastName)
	setString("gender", u.Gender)
	setString("country_code", u.CountryCode)
	setString("phone", u.Phone)
	setString("date_of_birth", u.DateOfBirth)
	setString("blood_type", u.BloodType)
	setString("emergency_contact_name", u.EmergencyContactName)
	setString("emergency_contact_phone", u.EmergencyContactPhone)
	setString("insurance_provider", u.InsuranceProvider)
	setString("insurance_policy_number", u.InsurancePolicyNumber)
	setString("avatar_url", u.AvatarURL)
	if u.Allergies != nil {
		p["allergies"] = nonNil(*u.Allergies)
	}
	if u.ChronicConditions != nil {
		p["chronic_conditions"] = nonNil(*u.ChronicConditions)
	}
	if u.HeightCM != nil {
		p["height_cm"] = *u.HeightCM
	}
	if u.WeightKG != nil {
		p["weight_kg"] = *u.WeightKG
	}
	return p
}

// signUpMetadata is the user metadata sent on registration. The provider
// copies it into the new profile row.
func signUpMetadata(in SignUpInput) map[string]any {
	return map[string]any{
		"first_name":    in.FirstName,
		"last_name":     in.LastName,
		"full_name":     fullName(in.FirstName, in.LastName),
		"date_of_birth": in.DateOfBirth,
		"gender":        in.Gender,
		"country_code":  in.CountryCode,
		"phone":         in.Phone,
	}
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ============================================================================
// Validation
// ============================================================================

// PrepareProfileUpdate validates the present fields of u and returns the
// sanitized update. Nothing is written when it returns an error.
func PrepareProfileUpdate(u ProfileUpdate, now time.Time) (ProfileUpdate, error) {
	if u.IsEmpty() {
		return ProfileUpdate{}, validationError("", "No profile fields to update")
	}

	if u.FirstName != nil {
		if r := validate.Name(*u.FirstName, "First name"); !r.Valid {
			return ProfileUpdate{}, validationError("firstName", r.Message)
		}
		u.FirstName = ptr(validate.Sanitize(*u.FirstName))
	}
	if u.LastName != nil {
		if r := validate.Name(*u.LastName, "Last name"); !r.Valid {
			return ProfileUpdate{}, validationError("lastName", r.Message)
		}
		u.LastName = ptr(validate.Sanitize(*u.LastName))
	}
	if u.DateOfBirth != nil {
		if r := validate.DateOfBirth(*u.DateOfBirth, now); !r.Valid {
			return ProfileUpdate{}, validationError("dateOfBirth", r.Message)
		}
	}
	if u.Gender != nil {
		if r := validate.Gender(*u.Gender); !r.Valid {
			return ProfileUpdate{}, validationError("gender", r.Message)
		}
	}
	if u.Phone != nil || u.CountryCode != nil {
		if u.Phone == nil || u.CountryCode == nil {
			return ProfileUpdate{}, validationError("phone", "Phone number and country code must be updated together")
		}
		code, phone, err := normalizePhone(*u.CountryCode, *u.Phone)
		if err != nil {
			return ProfileUpdate{}, err
		}
		u.CountryCode, u.Phone = &code, &phone
	}
	if u.BloodType != nil {
		if r := validate.BloodType(*u.BloodType); !r.Valid {
			return ProfileUpdate{}, validationError("bloodType", r.Message)
		}
		u.BloodType = ptr(strings.ToUpper(*u.BloodType))
	}
	if u.HeightCM != nil && !inRange(*u.HeightCM, MinHeightCM, MaxHeightCM) {
		return ProfileUpdate{}, validationError("heightCm", fmt.Sprintf("Height must be between %d and %d cm", MinHeightCM, MaxHeightCM))
	}
	if u.WeightKG != nil && !inRange(*u.WeightKG, MinWeightKG, MaxWeightKG) {
		return ProfileUpdate{}, validationError("weightKg", fmt.Sprintf("Weight must be between %d and %d kg", MinWeightKG, MaxWeightKG))
	}
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		if pu, err := url.Parse(*u.AvatarURL); err != nil || (pu.Scheme != "https" && pu.Scheme != "http") || pu.Host == "" {
			return ProfileUpdate{}, validationError("avatarUrl", "Avatar URL must be an http or https URL")
		}
	}

	for _, f := range []**string{
		&u.EmergencyContactName,
		&u.EmergencyContactPhone,
		&u.InsuranceProvider,
		&u.InsurancePolicyNumber,
	} {
		if *f != nil {
			*f = ptr(validate.Sanitize(**f))
		}
	}
	for _, f := range []**[]string{&u.Allergies, &u.ChronicConditions} {
		if *f != nil {
			*f = ptr(sanitizeList(**f))
		}
	}
	return u, nil
}

// normalizePhone validates and returns the "+"-prefixed calling code and the
// national number as digits.
func normalizePhone(countryCode, phone string) (string, string, error) {
	if r := validate.Phone(countryCode, phone); !r.Valid {
		return "", "", validationError("phone", r.Message)
	}
	code := strings.TrimSpace(countryCode)
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}
	return code, validate.NationalNumber(validate.PhoneRules[code], phone), nil
}

func sanitizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := validate.Sanitize(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool { return v >= lo && v <= hi }

// ============================================================================
// Profile Store
// ============================================================================

// ProfileStore reads and writes profiles through an identity.ProfileTable.
// It does not validate; callers run PrepareProfileUpdate first.
type ProfileStore struct {
	table identity.ProfileTable
	log   *slog.Logger
}

func NewProfileStore(table identity.ProfileTable, log *slog.Logger) *ProfileStore {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileStore{table: table, log: log}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var row identity.ProfileRow
	err := guard(s.log, "select_profile", func() (err error) {
		row, err = s.table.SelectProfile(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return MapProfileRow(row), nil
}

// Update applies u and returns the stored result. When only one name part
// changes the other is read back so full_name stays consistent.
func (s *ProfileStore) Update(ctx context.Context, userID string, u ProfileUpdate) (*Profile, error) {
	patch := ProfilePatch(u)

	var row identity.ProfileRow
	err := guard(s.log, "update_profile", func() (err error) {
		if u.FirstName != nil || u.LastName != nil {
			first, last := deref(u.FirstName), deref(u.LastName)
			if u.FirstName == nil || u.LastName == nil {
				cur, err := s.table.SelectProfile(ctx, userID)
				if err != nil {
					return err
				}
				if u.FirstName == nil {
					first = cur.FirstName
				}
				if u.LastName == nil {
					last = cur.LastName
				}
			}
			patch["full_name"] = fullName(first, last)
		}
		row, err = s.table.UpdateProfile(ctx, userID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return MapProfileRow(row), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
