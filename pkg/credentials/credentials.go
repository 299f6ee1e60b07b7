package credentials

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/community/pkg/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Credentials is the session token and the tenant it is scoped to.
type Credentials struct {
	Token     string    `json:"token"`
	Tenant    string    `json:"tenant"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Claims are the token fields shown to the user. The signature is not
// checked; the server does that on every request.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Inspect decodes the claims of a JWT without verifying it.
func Inspect(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &claims, nil
}

// New builds credentials for token and tenant, filling user and expiry from
// the token claims when the token is a JWT.
func New(token, tenant string) *Credentials {
	creds := &Credentials{Token: token, Tenant: tenant, SavedAt: time.Now().UTC()}
	claims, err := Inspect(token)
	if err != nil {
		return creds
	}
	creds.UserID = claims.Subject
	creds.Username = claims.Username
	if creds.Username == "" {
		creds.Username = claims.Name
	}
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return creds
}

// Load loads credentials from disk
func Load() (*Credentials, error) {
	path := config.GetCredentialsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Credentials don't exist yet
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// Save saves credentials to disk
func Save(creds *Credentials) error {
	path := config.GetCredentialsPath()
	if path == "" {
		return errors.New("config not initialized")
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	return os.WriteFile(path, data, 0600)
}

// Delete deletes credentials from disk
func Delete() error {
	err := os.Remove(config.GetCredentialsPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsExpired checks if the token is expired. Tokens without an expiry never are.
func (c *Credentials) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// IsValid checks if credentials can open a session
func (c *Credentials) IsValid() bool {
	return c.Token != "" && c.Tenant != "" && !c.IsExpired()
}
