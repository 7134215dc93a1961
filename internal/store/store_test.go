package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/boya-scheduler/internal/crypto"
)

func newAEAD(t *testing.T) *crypto.AEAD {
	t.Helper()
	k, err := crypto.NewKey()
	require.NoError(t, err)
	a, err := crypto.New(k)
	require.NoError(t, err)
	return a
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.Equal(t, Record{}, s.Load())
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	require.Equal(t, Record{}, New(path, nil).Load())
}

func TestSaveLoadPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.json")
	s := New(path, nil)
	want := Record{Username: "student", Password: "secret", Token: "tok"}

	require.NoError(t, s.Save(want))
	require.Equal(t, want, s.Load())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"token": "tok"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	s := New(path, newAEAD(t))
	want := Record{Username: "student", Password: "secret", Token: "tok"}

	require.NoError(t, s.Save(want))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret")
	require.Equal(t, 2, strings.Count(string(raw), sealedPrefix))
	require.Contains(t, string(raw), `"username": "student"`)

	require.Equal(t, want, s.Load())
}

func TestSealedFieldsWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, New(path, newAEAD(t)).Save(Record{Username: "u", Password: "p", Token: "t"}))

	// another key cannot open them either
	require.Equal(t, Record{Username: "u"}, New(path, nil).Load())
	require.Equal(t, Record{Username: "u"}, New(path, newAEAD(t)).Load())
}

func TestPlainFieldsReadWithKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, New(path, nil).Save(Record{Username: "u", Password: "p"}))

	require.Equal(t, Record{Username: "u", Password: "p"}, New(path, newAEAD(t)).Load())
}
