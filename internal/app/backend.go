package app

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/api/imapapi"
	"github.com/nhle/evaldash/internal/api/rest"
	"github.com/nhle/evaldash/internal/credential"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/store"
)

// Backend is an opened notification source.
type Backend struct {
	API api.NotificationAPI

	// Close releases the backend. Nil when there is nothing to release.
	Close func() error
}

// BackendFactory opens the backend described by cfg.
type BackendFactory func(cfg *model.AppConfig, logger *zap.Logger) (Backend, error)

// OpenBackend opens the configured backend. Secrets are read from the
// system keyring; a missing secret is passed on as empty and surfaces as
// an auth error on the first fetch.
func OpenBackend(cfg *model.AppConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.API.Backend {
	case model.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.API.SQLitePath)
		if err != nil {
			return Backend{}, fmt.Errorf("opening sqlite backend: %w", err)
		}
		return Backend{API: s, Close: s.Close}, nil

	case model.BackendREST:
		token, err := credential.Lookup(credential.KeyRESTToken)
		if err != nil {
			logger.Warn("reading rest token from keyring", zap.Error(err))
		}
		hc := &http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second}
		c := rest.NewClient(cfg.API.BaseURL, token,
			rest.WithHTTPClient(hc),
			rest.WithMaxRetries(cfg.API.MaxRetries),
			rest.WithLogger(logger.Named("rest")),
		)
		return Backend{API: c}, nil

	case model.BackendIMAP:
		password, err := credential.Lookup(credential.KeyIMAPPassword)
		if err != nil {
			logger.Warn("reading imap password from keyring", zap.Error(err))
		}
		return Backend{API: imapapi.NewClient(cfg.API.IMAP, password, logger.Named("imap"))}, nil

	default:
		return Backend{}, fmt.Errorf("unsupported backend %q", cfg.API.Backend)
	}
}
