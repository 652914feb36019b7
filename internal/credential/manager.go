package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greybackend/internal/transport"
	"greybackend/pkg/logger"
	"greybackend/pkg/metrics"
	"greybackend/pkg/otel"
)

// AccessTokenLifetime is how long a freshly exchanged token is recorded as
// valid, one second short of the provider's hour.
const AccessTokenLifetime = 3599 * time.Second

// Manager turns the stored credential into a ready transport. It keeps no
// state between calls, so concurrent callers each run a full exchange and
// the last persisted token wins.
type Manager struct {
	store     Store
	exchanger Exchanger
	factory   transport.Factory
	logger    *zap.Logger
	now       func() time.Time
}

func NewManager(store Store, exchanger Exchanger, factory transport.Factory, log *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		exchanger: exchanger,
		factory:   factory,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// GetTransport loads, validates and refreshes the credential and returns a
// transport bound to its account. Only a credential that is absent from the
// store yields KindUnavailable, which callers treat as a request for the mock
// path. A store that cannot be read yields KindStoreFailure.
func (m *Manager) GetTransport(ctx context.Context) (tr transport.Transport, err error) {
	ctx, span := otel.StartSpan(ctx, "credential.refresh")
	defer func() { otel.End(span, err) }()
	return m.getTransport(ctx)
}

func (m *Manager) getTransport(ctx context.Context) (transport.Transport, error) {
	log := logger.WithTrace(ctx, m.logger)

	cred, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if missing := cred.MissingFields(); len(missing) > 0 {
		log.Warn("gmail credentials incomplete", zap.Strings("missing", missing))
		return nil, incomplete(m.store.Describe(), missing)
	}

	log.Info("refreshing gmail access token",
		zap.String("user_email", cred.UserEmail),
		zap.Bool("has_refresh_token", cred.RefreshToken != ""))

	tok, err := m.exchanger.Exchange(ctx, cred)
	if err != nil {
		metrics.IncrementTokenExchange("failure")
		detail := providerDetail(err)
		log.Error("token refresh failed", zap.String("detail", detail), zap.Error(err))
		return nil, exchangeFailed(detail, cred.UserEmail, m.store.Describe(), err)
	}
	metrics.IncrementTokenExchange("success")

	// Only the access token and expiry are written back. The refresh token
	// is owned by the bootstrap flow and stays as stored.
	next := cred.withAccessToken(tok.AccessToken, m.now().Add(AccessTokenLifetime))
	if tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken {
		log.Warn("provider returned a new refresh token, keeping the stored one; rerun `greyctl oauth exchange` if sends start failing")
	}
	if err := m.store.Save(ctx, next); err != nil {
		log.Warn("could not persist refreshed access token", zap.Error(err))
	}

	tr, err := m.factory(cred.UserEmail, tok)
	if err != nil {
		return nil, fmt.Errorf("build transport for %s: %w", cred.UserEmail, err)
	}
	log.Info("gmail transport ready", zap.String("user_email", cred.UserEmail))
	return tr, nil
}

func (m *Manager) load(ctx context.Context) (*Credential, error) {
	cred, err := m.store.Load(ctx)
	if err == nil {
		return cred, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, unavailable(m.store.Describe(), err)
	}
	var de *decodeError
	if errors.As(err, &de) {
		return nil, unreadable(m.store.Describe(), de.err)
	}
	m.logger.Error("credential store read failed", zap.String("source", m.store.Describe()), zap.Error(err))
	return nil, storeFailure(m.store.Describe(), err)
}

// Status summarizes a credential check without exposing secrets.
type Status struct {
	Valid           bool   `json:"success"`
	Message         string `json:"message"`
	UserEmail       string `json:"userEmail,omitempty"`
	ClientIDPrefix  string `json:"clientId,omitempty"`
	HasRefreshToken bool   `json:"hasRefreshToken"`
	HasAccessToken  bool   `json:"hasAccessToken"`
}

// Check performs a full refresh and reports the outcome. The refreshed
// token is persisted as a side effect, same as a real send.
func (m *Manager) Check(ctx context.Context) (*Status, error) {
	if _, err := m.GetTransport(ctx); err != nil {
		return nil, err
	}
	cred, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload credential: %w", err)
	}
	return &Status{
		Valid:           true,
		Message:         "Gmail credentials are valid",
		UserEmail:       cred.UserEmail,
		ClientIDPrefix:  maskClientID(cred.ClientID),
		HasRefreshToken: cred.RefreshToken != "",
		HasAccessToken:  cred.AccessToken != "",
	}, nil
}

func maskClientID(id string) string {
	if len(id) <= 20 {
		return id
	}
	return id[:20] + "..."
}

// Sender returns the account identity of the stored credential, or fallback
// when no usable record exists.
func (m *Manager) Sender(ctx context.Context, fallback string) string {
	cred, err := m.store.Load(ctx)
	if err != nil || cred.UserEmail == "" {
		return fallback
	}
	return cred.UserEmail
}
