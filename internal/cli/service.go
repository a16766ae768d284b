package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/cryptox"
	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/storage"
	"github.com/aussiebroadwan/medrec/pkg/storage/sqlite"
)

const sealerInfo = "medrec/session-storage/v1"

var ErrNotConfigured = errors.New("IDENTITY_URL and IDENTITY_ANON_KEY must be set")

// NewService opens the local store and builds an authsdk.Service against
// the configured identity provider. Session tokens are sealed before they
// reach disk; everything else is stored as is.
func NewService(ctx context.Context, cfg Config, log *slog.Logger) (*authsdk.Service, func(), error) {
	if cfg.IdentityURL == "" || cfg.IdentityAnonKey == "" {
		return nil, nil, ErrNotConfigured
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlite.Open(filepath.Join(cfg.DataDir, "medrec.db"))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	master, ephemeral, err := cryptox.LoadMasterKey(cfg.MasterKeyFile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if ephemeral {
		log.Warn("no master key configured: the session will not survive this run")
	}
	sealer, err := cryptox.NewSealer(master, sealerInfo)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	icfg := identity.Config{
		URL:     cfg.IdentityURL,
		AnonKey: cfg.IdentityAnonKey,
		Storage: storage.NewSplit(storage.NewSecure(db, sealer), db),
		Logger:  log,
	}
	client, err := identity.NewClient(icfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	profiles, err := identity.NewRestProfiles(icfg, client.AccessToken)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := newAuthService(client, profiles, cfg.AppURL, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, func() { svc.Close(); cleanup() }, nil
}

func newAuthService(p identity.Provider, t identity.ProfileTable, appURL string, log *slog.Logger) (*authsdk.Service, error) {
	repo, err := authsdk.NewRepository(authsdk.RepositoryConfig{
		Provider: p,
		Profiles: t,
		AppURL:   appURL,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	return authsdk.NewService(authsdk.Config{Repository: repo, Logger: log})
}
