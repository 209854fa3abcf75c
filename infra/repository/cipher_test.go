package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testIndexKey      = "test-index-key"
)

func newTestCipher(t testing.TB) *NumberCipher {
	t.Helper()
	c, err := NewNumberCipher(testEncryptionKey, testIndexKey)
	require.NoError(t, err)
	return c
}

func TestNumberCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	enc1, err := c.Encrypt("4000000000000001")
	require.NoError(t, err)
	enc2, err := c.Encrypt("4000000000000001")
	require.NoError(t, err)
	assert.NotEqual(t, enc1, enc2, "nonce must differ per encryption")
	assert.NotContains(t, enc1, "4000000000000001")

	plain, err := c.Decrypt(enc1)
	require.NoError(t, err)
	assert.Equal(t, "4000000000000001", plain)
}

func TestNumberCipher_Index(t *testing.T) {
	c := newTestCipher(t)
	assert.Equal(t, c.Index("4000000000000001"), c.Index("4000000000000001"))
	assert.NotEqual(t, c.Index("4000000000000001"), c.Index("4000000000000002"))
	assert.Len(t, c.Index("x"), 64)

	other, err := NewNumberCipher(testEncryptionKey, "another-key")
	require.NoError(t, err)
	assert.NotEqual(t, c.Index("4000000000000001"), other.Index("4000000000000001"))
}

func TestNumberCipher_Keys(t *testing.T) {
	_, err := NewNumberCipher("short", testIndexKey)
	assert.Error(t, err)
	_, err = NewNumberCipher(testEncryptionKey, "")
	assert.Error(t, err)
	_, err = NewNumberCipher(strings.Repeat("k", 32), testIndexKey)
	assert.NoError(t, err)
}

func TestNumberCipher_DecryptTampered(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("4000000000000001")
	require.NoError(t, err)

	b := []byte(enc)
	if b[len(b)-1] == '0' {
		b[len(b)-1] = '1'
	} else {
		b[len(b)-1] = '0'
	}
	_, err = c.Decrypt(string(b))
	assert.Error(t, err)

	_, err = c.Decrypt("zz")
	assert.Error(t, err)
}
