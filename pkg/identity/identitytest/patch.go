package identitytest

import (
	"fmt"

	"github.com/aussiebroadwan/medrec/pkg/identity"
)

// ApplyPatch writes patch onto row the way the profiles table would.
func ApplyPatch(row *identity.ProfileRow, patch identity.ProfilePatch) error {
	for col, v := range patch {
		var ok bool
		switch col {
		case "first_name":
			row.FirstName, ok = v.(string)
		case "last_name":
			row.LastName, ok = v.(string)
		case "full_name":
			row.FullName, ok = v.(string)
		case "gender":
			row.Gender, ok = v.(string)
		case "country_code":
			row.CountryCode, ok = v.(string)
		case "phone":
			row.Phone, ok = v.(string)
		case "date_of_birth":
			row.DateOfBirth, ok = v.(string)
		case "blood_type":
			row.BloodType, ok = v.(string)
		case "allergies":
			row.Allergies, ok = v.([]string)
		case "chronic_conditions":
			row.ChronicConditions, ok = v.([]string)
		case "height_cm":
			row.HeightCM, ok = floatPtr(v)
		case "weight_kg":
			row.WeightKG, ok = floatPtr(v)
		case "emergency_contact_name":
			row.EmergencyContactName, ok = v.(string)
		case "emergency_contact_phone":
			row.EmergencyContactPhone, ok = v.(string)
		case "insurance_provider":
			row.InsuranceProvider, ok = v.(string)
		case "insurance_policy_number":
			row.InsurancePolicyNumber, ok = v.(string)
		case "avatar_url":
			row.AvatarURL, ok = v.(string)
		default:
			return fmt.Errorf("%w: %s", identity.ErrUnknownColumn, col)
		}
		if !ok {
			return fmt.Errorf("identitytest: column %s: unexpected type %T", col, v)
		}
	}
	return nil
}

func floatPtr(v any) (*float64, bool) {
	switch f := v.(type) {
	case nil:
		return nil, true
	case float64:
		return &f, true
	case *float64:
		return f, true
	}
	return nil, false
}
