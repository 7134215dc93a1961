package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	a, err := New(key)
	require.NoError(t, err)

	ct, err := a.EncryptToString("hunter2")
	require.NoError(t, err)
	require.NotContains(t, ct, "hunter2")

	pt, err := a.DecryptString(ct)
	require.NoError(t, err)
	require.Equal(t, "hunter2", pt)

	// fresh nonce per call
	ct2, err := a.EncryptToString("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, ct, ct2)
}

func TestDecryptWithWrongKey(t *testing.T) {
	k1, _ := NewKey()
	k2, _ := NewKey()
	a1, err := New(k1)
	require.NoError(t, err)
	a2, err := New(k2)
	require.NoError(t, err)

	ct, err := a1.EncryptToString("token")
	require.NoError(t, err)
	_, err = a2.DecryptString(ct)
	require.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	k, _ := NewKey()
	a, err := New(k)
	require.NoError(t, err)

	_, err = a.DecryptString("not base64!")
	require.Error(t, err)
	_, err = a.DecryptString("AAAA")
	require.ErrorContains(t, err, "too short")
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("short"))
	require.Error(t, err)
}
