// Package postgres reads and writes the profiles table directly with pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aussiebroadwan/medrec/internal/auth/store"
	"github.com/aussiebroadwan/medrec/pkg/identity"
)

var (
	ErrEmptyConnectionString = errors.New("postgres: empty connection string")
	ErrFailedToConnect       = errors.New("postgres: failed to connect")
)

//go:embed schema.sql
var schema string

type Config struct {
	URL           string
	MaxConns      int32
	RetryAttempts int
	RetryInterval time.Duration
}

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Profiles = (*Store)(nil)

// Open connects to cfg.URL, retrying with a linear backoff until the
// database answers a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyConnectionString
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	attempts := max(cfg.RetryAttempts, 1)

	var lastErr error
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &Store{pool: pool}, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnect, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ApplySchema creates the profiles table if it does not exist. In
// production the identity provider owns the table.
func (s *Store) ApplySchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const selectColumns = `id::text,
	coalesce(first_name, ''), coalesce(last_name, ''), coalesce(full_name, ''),
	coalesce(gender, ''), coalesce(country_code, ''), coalesce(phone, ''),
	coalesce(to_char(date_of_birth, 'YYYY-MM-DD'), ''), coalesce(blood_type, ''),
	coalesce(allergies, '{}'), coalesce(chronic_conditions, '{}'),
	height_cm, weight_kg,
	coalesce(emergency_contact_name, ''), coalesce(emergency_contact_phone, ''),
	coalesce(insurance_provider, ''), coalesce(insurance_policy_number, ''),
	coalesce(avatar_url, ''), created_at, updated_at`

func scanRow(row pgx.Row) (identity.ProfileRow, error) {
	var r identity.ProfileRow
	err := row.Scan(
		&r.ID,
		&r.FirstName, &r.LastName, &r.FullName,
		&r.Gender, &r.CountryCode, &r.Phone,
		&r.DateOfBirth, &r.BloodType,
		&r.Allergies, &r.ChronicConditions,
		&r.HeightCM, &r.WeightKG,
		&r.EmergencyContactName, &r.EmergencyContactPhone,
		&r.InsuranceProvider, &r.InsurancePolicyNumber,
		&r.AvatarURL, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.ProfileRow{}, store.ErrNotFound
	}
	return r, err
}

func (s *Store) SelectProfile(ctx context.Context, userID string) (identity.ProfileRow, error) {
	return scanRow(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM profiles WHERE id = $1::uuid`, userID))
}

// UpdateProfile applies patch and returns the updated row. Columns are
// checked against identity.ProfileColumns before any SQL is built.
func (s *Store) UpdateProfile(ctx context.Context, userID string, patch identity.ProfilePatch) (identity.ProfileRow, error) {
	if err := identity.ValidatePatch(patch); err != nil {
		return identity.ProfileRow{}, err
	}
	if len(patch) == 0 {
		return s.SelectProfile(ctx, userID)
	}

	cols := make([]string, 0, len(patch))
	for col := range patch {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	sets := make([]string, 0, len(cols)+1)
	args := []any{userID}
	for _, col := range cols {
		args = append(args, patch[col])
		sets = append(sets, fmt.Sprintf("%s = %s", col, placeholder(col, len(args))))
	}
	sets = append(sets, "updated_at = now()")

	q := `UPDATE profiles SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1::uuid RETURNING ` + selectColumns
	return scanRow(s.pool.QueryRow(ctx, q, args...))
}

func placeholder(col string, n int) string {
	if col == "date_of_birth" {
		return fmt.Sprintf("NULLIF($%d::text, '')::date", n)
	}
	return fmt.Sprintf("$%d", n)
}
