package service

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/credentials"
	"github.com/zfogg/sidechain/community/pkg/output"
	"github.com/zfogg/sidechain/community/pkg/prompter"
)

func initConfig(t *testing.T) {
	t.Helper()
	require.NoError(t, config.Init(filepath.Join(t.TempDir(), "config.toml")))
}

func TestLoginPromptsForMissingValues(t *testing.T) {
	initConfig(t)
	var out bytes.Buffer
	svc := NewAuthService(prompter.New(strings.NewReader("guitar-club\nopaque-token\n"), io.Discard), output.New(&out, output.FormatText))

	require.NoError(t, svc.Login("", ""))
	assert.Equal(t, "✓ Logged in to guitar-club\n", out.String())

	creds, err := Current()
	require.NoError(t, err)
	assert.Equal(t, "guitar-club", creds.Tenant)
	assert.Equal(t, "opaque-token", creds.Token)
}

func TestLoginWithJWTShowsUser(t *testing.T) {
	initConfig(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, credentials.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "riffmaster",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	var out bytes.Buffer
	svc := NewAuthService(prompter.New(strings.NewReader(""), io.Discard), output.New(&out, output.FormatText))
	require.NoError(t, svc.Login(token, "guitar-club"))
	assert.Equal(t, "✓ Logged in to guitar-club as riffmaster\n", out.String())

	out.Reset()
	jsonSvc := NewAuthService(nil, output.New(&out, output.FormatJSON))
	require.NoError(t, jsonSvc.Status())
	var status map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, "user-42", status["user_id"])
	assert.Equal(t, true, status["valid"])
	assert.True(t, strings.HasSuffix(status["token"].(string), "..."))
}

func TestLoginRejectsExpiredToken(t *testing.T) {
	initConfig(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	svc := NewAuthService(nil, output.New(io.Discard, output.FormatText))
	err = svc.Login(token, "guitar-club")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")

	_, err = Current()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogout(t *testing.T) {
	initConfig(t)
	require.NoError(t, credentials.Save(credentials.New("tok", "guitar-club")))

	var out bytes.Buffer
	svc := NewAuthService(nil, output.New(&out, output.FormatText))
	require.NoError(t, svc.Logout())
	assert.Equal(t, "✓ Logged out\n", out.String())

	assert.ErrorIs(t, svc.Status(), ErrNotLoggedIn)
}
