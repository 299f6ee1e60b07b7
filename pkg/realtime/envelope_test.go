package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"post:deleted","payload":{"id":"p1"},"timestamp":"2026-03-01T12:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePostDeleted, env.Type)
	assert.Equal(t, fixedNow, env.Time())

	ev, err := decodeEvent(env)
	require.NoError(t, err)
	assert.Equal(t, PostDeleted{ID: "p1"}, ev)

	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, errMissingType)

	_, err = DecodeEnvelope([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"connected"}`))
	require.NoError(t, err)
	assert.True(t, env.Time().IsZero())

	ev, err := decodeEvent(env)
	require.NoError(t, err)
	assert.Equal(t, Connected{}, ev)
}

func TestNewEnvelopeOmitsNilPayload(t *testing.T) {
	env, err := NewEnvelope(TypePing, nil, fixedNow)
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","timestamp":"2026-03-01T12:00:00Z"}`, string(data))
}
