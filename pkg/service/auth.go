package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zfogg/sidechain/community/pkg/credentials"
	"github.com/zfogg/sidechain/community/pkg/logger"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
)

// ErrNotLoggedIn is returned when no credentials are stored.
var ErrNotLoggedIn = errors.New("not logged in: run `community auth login`")

// AuthService manages the stored session token and tenant.
type AuthService struct {
	prompt *prompter.Prompter
	out    *output.Printer
}

// NewAuthService creates a new auth service
func NewAuthService(p *prompter.Prompter, out *output.Printer) *AuthService {
	return &AuthService{prompt: p, out: out}
}

// Login stores token and tenant, prompting for whichever is empty.
func (as *AuthService) Login(token, tenant string) error {
	var err error
	if strings.TrimSpace(tenant) == "" {
		if tenant, err = as.prompt.String("Tenant: "); err != nil {
			return fmt.Errorf("read tenant: %w", err)
		}
	}
	if strings.TrimSpace(token) == "" {
		if token, err = as.prompt.Secret("Session token: "); err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}

	creds := credentials.New(strings.TrimSpace(token), strings.TrimSpace(tenant))
	if creds.Token == "" || creds.Tenant == "" {
		return errors.New("token and tenant are required")
	}
	if creds.IsExpired() {
		return fmt.Errorf("token expired at %s", formatTime(creds.ExpiresAt))
	}

	if err := credentials.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	logger.Debug("Saved credentials", "tenant", creds.Tenant, "user_id", creds.UserID)

	who := creds.Username
	if who == "" {
		who = creds.UserID
	}
	if who != "" {
		as.out.Success("✓ Logged in to %s as %s", creds.Tenant, who)
	} else {
		as.out.Success("✓ Logged in to %s", creds.Tenant)
	}
	return nil
}

// Logout removes stored credentials.
func (as *AuthService) Logout() error {
	if err := credentials.Delete(); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	as.out.Success("✓ Logged out")
	return nil
}

// Status shows who is logged in and whether the token is still usable.
func (as *AuthService) Status() error {
	creds, err := credentials.Load()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		return ErrNotLoggedIn
	}

	record := map[string]interface{}{
		"tenant":     creds.Tenant,
		"token":      truncate(creds.Token, 16),
		"expires_at": formatTime(creds.ExpiresAt),
		"valid":      creds.IsValid(),
	}
	if creds.UserID != "" {
		record["user_id"] = creds.UserID
	}
	if creds.Username != "" {
		record["username"] = creds.Username
	}
	return as.out.Record("Session", record)
}

// Current returns the stored credentials or an error when they are missing
// or no longer valid.
func Current() (*credentials.Credentials, error) {
	creds, err := credentials.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		return nil, ErrNotLoggedIn
	}
	if !creds.IsValid() {
		return nil, fmt.Errorf("session for %s expired at %s: log in again", creds.Tenant, formatTime(creds.ExpiresAt))
	}
	return creds, nil
}
