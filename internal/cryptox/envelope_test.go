package cryptox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMasterKey  = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	otherMasterKey = "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testMasterKey)
	require.NoError(t, err)
	require.True(t, c.Enabled())
	return c
}

func TestNewRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"short", strings.Repeat("zz", 32), strings.Repeat("ab", 16)} {
		_, err := New(key)
		assert.ErrorIs(t, err, ErrInvalidMasterKey, "key: %s", key)
	}
}

func TestNewEmptyKeyDisablesEncryption(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	env, err := c.EncryptField("secret")
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = c.DecryptField(&Envelope{V: EnvelopeVersion})
	assert.ErrorIs(t, err, ErrEncryptionDisabled)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{
		"my AMH came back at 0.8",
		"",
		"unicode: 日本語 🧬 émojis",
		strings.Repeat("long ", 2000),
	} {
		env, err := c.EncryptField(plaintext)
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.Equal(t, EnvelopeVersion, env.V)

		got, err := c.DecryptField(env)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptFieldUsesFreshKeyMaterial(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.EncryptField("same plaintext")
	require.NoError(t, err)
	b, err := c.EncryptField("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, a.CT, b.CT)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.EK, b.EK)
}

func TestDecryptFieldRejectsTampering(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptField("sensitive payload")
	require.NoError(t, err)

	flip := func(b64 string) string {
		raw, err := base64.StdEncoding.DecodeString(b64)
		require.NoError(t, err)
		raw[0] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	tampered := *env
	tampered.CT = flip(env.CT)
	_, err = c.DecryptField(&tampered)
	assert.Error(t, err)

	tampered = *env
	tampered.AT = flip(env.AT)
	_, err = c.DecryptField(&tampered)
	assert.Error(t, err)

	tampered = *env
	tampered.EK = flip(env.EK)
	_, err = c.DecryptField(&tampered)
	assert.Error(t, err)
}

func TestDecryptFieldRejectsUnknownVersion(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptField("payload")
	require.NoError(t, err)

	env.V = 99
	_, err = c.DecryptField(env)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	_, err = c.DecryptField(nil)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestDecryptFieldWrongMasterKey(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptField("payload")
	require.NoError(t, err)

	other, err := New(otherMasterKey)
	require.NoError(t, err)
	_, err = other.DecryptField(env)
	assert.Error(t, err)
}

func TestRotateEnvelopes(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptField("rotate me")
	require.NoError(t, err)

	rotated, err := RotateEnvelopes([]*Envelope{env}, testMasterKey, otherMasterKey)
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	// Payload layer is untouched; only the key-wrap layer changes.
	assert.Equal(t, env.CT, rotated[0].CT)
	assert.Equal(t, env.IV, rotated[0].IV)
	assert.Equal(t, env.AT, rotated[0].AT)
	assert.NotEqual(t, env.EK, rotated[0].EK)

	newCipher, err := New(otherMasterKey)
	require.NoError(t, err)
	got, err := newCipher.DecryptField(rotated[0])
	require.NoError(t, err)
	assert.Equal(t, "rotate me", got)

	// The old key can no longer open the rotated envelope.
	_, err = c.DecryptField(rotated[0])
	assert.Error(t, err)
}

func TestRotateEnvelopesWrongOldKey(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptField("payload")
	require.NoError(t, err)

	_, err = RotateEnvelopes([]*Envelope{env}, otherMasterKey, testMasterKey)
	assert.Error(t, err)
}
