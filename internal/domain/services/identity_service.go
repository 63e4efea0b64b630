package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/cvbuilder/internal/auth/oidc"
	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
	"github.com/devilmonastery/cvbuilder/internal/pkg/idgen"
	"github.com/devilmonastery/cvbuilder/internal/pkg/logger"
	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
	"github.com/devilmonastery/cvbuilder/internal/pkg/secretbox"
)

// maxResolveAttempts bounds the lookup path when a create loses an insert race
const maxResolveAttempts = 2

// Resolution outcomes, also used as metric labels
const (
	OutcomeExisting = "existing"
	OutcomeMerged   = "merged"
	OutcomeCreated  = "created"
	OutcomeError    = "error"
)

// ProviderResolver looks up provider adapters; *oidc.Registry implements it
type ProviderResolver interface {
	Get(providerType oidc.ProviderType) (oidc.Provider, error)
}

// TokenIssuer mints session tokens; *auth.JWTManager implements it
type TokenIssuer interface {
	Issue(accountID, email, name string) (string, time.Time, error)
}

// AuthResult is what a successful authentication returns
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   entities.AccountSummary
	Outcome   string
}

// IdentityServiceOptions holds the optional collaborators of IdentityService
type IdentityServiceOptions struct {
	// Box seals provider access tokens before they are stored. Nil disables
	// token storage.
	Box *secretbox.Box

	// RequireVerifiedEmailForMerge refuses email merges the provider did not
	// verify
	RequireVerifiedEmailForMerge bool

	Logger *slog.Logger
}

// IdentityService resolves external provider identities to accounts and
// issues session tokens for them
type IdentityService struct {
	providers  ProviderResolver
	accounts   *repositories.AccountStore
	identities *repositories.IdentityStore
	tokens     TokenIssuer
	box        *secretbox.Box
	verified   bool
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewIdentityService creates a new identity service
func NewIdentityService(
	providers ProviderResolver,
	accounts *repositories.AccountStore,
	identities *repositories.IdentityStore,
	tokens TokenIssuer,
	opts IdentityServiceOptions,
) *IdentityService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &IdentityService{
		providers:  providers,
		accounts:   accounts,
		identities: identities,
		tokens:     tokens,
		box:        opts.Box,
		verified:   opts.RequireVerifiedEmailForMerge,
		logger:     log.With("component", "identity_service"),
		now:        time.Now,
		newID:      idgen.GenerateID,
	}
}

// Authenticate validates a provider credential, finds or creates the account
// it belongs to and issues a session token. Every error wraps
// ErrAuthenticationFailed together with its cause.
func (s *IdentityService) Authenticate(ctx context.Context, providerType oidc.ProviderType, credential string) (result *AuthResult, err error) {
	start := time.Now()
	label := metricProvider(providerType)
	log := logger.WithProvider(s.logger, label)

	defer func() {
		outcome := OutcomeError
		if result != nil {
			outcome = result.Outcome
		}
		metrics.Authentications.WithLabelValues(label, outcome).Inc()
		metrics.AuthenticationDuration.WithLabelValues(label).Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			logger.WithDuration(log, time.Since(start)).Warn("authentication failed",
				"reason", FailureReason(err),
				"error", err)
		}
	}()

	provider, err := s.providers.Get(providerType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	info, err := provider.ValidateToken(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	log = log.With("subject", info.Subject)

	var (
		account *entities.Account
		outcome string
	)
	for attempt := 1; ; attempt++ {
		account, outcome, err = s.resolve(ctx, provider.Type(), info)
		if err == nil || !errors.Is(err, repositories.ErrConflict) || attempt >= maxResolveAttempts {
			break
		}
		metrics.CreateConflictRetries.WithLabelValues(label).Inc()
		log.Debug("create conflict, retrying lookup", "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	identities, err := s.identities.ListActiveByAccount(ctx, account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list identities: %w", ErrAuthenticationFailed, err)
	}

	token, expiresAt, err := s.tokens.Issue(account.AccountID, account.Email, account.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: issue session token: %w", ErrAuthenticationFailed, err)
	}
	metrics.SessionTokensIssued.Inc()

	logger.WithAccount(log, account.AccountID).Info("authenticated",
		"outcome", outcome,
		"identities", len(identities),
		"duration_ms", time.Since(start).Milliseconds())

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   entities.NewAccountSummary(account, identities),
		Outcome:   outcome,
	}, nil
}

// GetAccountSummary returns an account with its active identities
func (s *IdentityService) GetAccountSummary(ctx context.Context, accountID string) (*entities.AccountSummary, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return s.summarize(ctx, account)
}

// GetAccountSummaryByEmail returns the account reached by email matching
func (s *IdentityService) GetAccountSummaryByEmail(ctx context.Context, email string) (*entities.AccountSummary, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	return s.summarize(ctx, account)
}

// ListAccounts returns every account
func (s *IdentityService) ListAccounts(ctx context.Context) ([]entities.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *IdentityService) summarize(ctx context.Context, account *entities.Account) (*entities.AccountSummary, error) {
	identities, err := s.identities.ListActiveByAccount(ctx, account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	summary := entities.NewAccountSummary(account, identities)
	return &summary, nil
}

// resolve runs one pass of the lookup path. A linked identity always wins
// over email matching, and two existing accounts are never merged.
func (s *IdentityService) resolve(ctx context.Context, pt oidc.ProviderType, info *oidc.UserInfo) (*entities.Account, string, error) {
	identity, err := s.identities.FindActive(ctx, pt.String(), info.Subject)
	if err != nil {
		return nil, "", fmt.Errorf("find identity: %w", err)
	}
	if identity != nil {
		account, err := s.loginExisting(ctx, identity, info)
		return account, OutcomeExisting, err
	}

	account, err := s.accounts.FindByEmail(ctx, info.Email)
	if err != nil {
		return nil, "", fmt.Errorf("find account by email: %w", err)
	}
	if account != nil {
		err := s.merge(ctx, pt, account, info)
		return account, OutcomeMerged, err
	}

	account, err = s.createAccount(ctx, pt, info)
	return account, OutcomeCreated, err
}

// loginExisting refreshes an account reached through its linked identity
func (s *IdentityService) loginExisting(ctx context.Context, identity *entities.LinkedIdentity, info *oidc.UserInfo) (*entities.Account, error) {
	account, err := s.accounts.Get(ctx, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: identity %s references missing account %s",
			ErrDataIntegrity, identity.ProviderKey(), identity.AccountID)
	}

	now := s.now().UTC()
	account.ApplyProfile(info.Name, info.Picture)
	account.LastLoginAt = now
	if err := s.accounts.Replace(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	if err := s.applyUserInfo(identity, info, now); err != nil {
		return nil, err
	}
	if err := s.identities.Replace(ctx, identity); err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	return account, nil
}

// merge links a new identity to an account found by email
func (s *IdentityService) merge(ctx context.Context, pt oidc.ProviderType, account *entities.Account, info *oidc.UserInfo) error {
	if s.verified && !info.EmailVerified {
		return fmt.Errorf("%w: %s", ErrEmailNotVerified, pt)
	}

	now := s.now().UTC()
	identity, err := s.newIdentity(account.AccountID, pt, info, now)
	if err != nil {
		return err
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	account.LastLoginAt = now
	if err := s.accounts.Replace(ctx, account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	logger.WithAccount(s.logger, account.AccountID).Info("linked identity to existing account",
		"provider", pt.String(),
		"subject", info.Subject,
		"email_verified", info.EmailVerified)
	return nil
}

// createAccount creates a new account and its first identity. If the identity
// loses an insert race the new account is removed so the retry can find the
// winner's.
func (s *IdentityService) createAccount(ctx context.Context, pt oidc.ProviderType, info *oidc.UserInfo) (*entities.Account, error) {
	now := s.now().UTC()
	account := &entities.Account{
		AccountID:   s.newID(),
		Name:        info.Name,
		Picture:     info.Picture,
		CreatedAt:   now,
		LastLoginAt: now,
	}
	account.SetEmail(info.Email)

	identity, err := s.newIdentity(account.AccountID, pt, info, now)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			s.removeOrphan(context.WithoutCancel(ctx), account.AccountID)
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	logger.WithAccount(s.logger, account.AccountID).Info("created account",
		"provider", pt.String(),
		"subject", info.Subject)
	return account, nil
}

// removeOrphan deletes an account created by a request that then lost the
// identity race. A concurrent request may already have merged into it by
// email, in which case it is kept.
func (s *IdentityService) removeOrphan(ctx context.Context, accountID string) {
	log := logger.WithAccount(s.logger, accountID)

	linked, err := s.identities.ListActiveByAccount(ctx, accountID)
	if err != nil {
		log.Error("failed to check account before removal", "error", err)
		return
	}
	if len(linked) > 0 {
		log.Debug("account was claimed by a concurrent merge, keeping it")
		return
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		log.Error("failed to remove orphaned account", "error", err)
	}
}

func (s *IdentityService) newIdentity(accountID string, pt oidc.ProviderType, info *oidc.UserInfo, now time.Time) (*entities.LinkedIdentity, error) {
	identity := &entities.LinkedIdentity{
		ID:             s.newID(),
		AccountID:      accountID,
		ProviderType:   pt.String(),
		ProviderUserID: info.Subject,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := s.applyUserInfo(identity, info, now); err != nil {
		return nil, err
	}
	return identity, nil
}

// applyUserInfo copies the provider-reported fields onto the identity
func (s *IdentityService) applyUserInfo(identity *entities.LinkedIdentity, info *oidc.UserInfo, now time.Time) error {
	identity.ProviderEmail = info.Email
	identity.ProviderName = info.Name
	identity.ProviderPicture = info.Picture
	identity.EmailVerified = info.EmailVerified
	identity.LastUsedAt = now

	if s.box == nil || info.AccessToken == "" {
		return nil
	}
	sealed, err := s.box.Seal(info.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	identity.AccessTokenEncrypted = sealed
	identity.TokenExpiresAt = info.AccessTokenExpiresAt
	return nil
}

// metricProvider keeps unknown provider names out of metric labels
func metricProvider(pt oidc.ProviderType) string {
	if parsed, err := oidc.ParseProviderType(pt.String()); err == nil {
		return parsed.String()
	}
	return "unknown"
}
