package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/boya-scheduler/internal/crypto"
	"github.com/example/boya-scheduler/internal/errs"
)

// sealedPrefix marks a field written by a store with a credential key.
const sealedPrefix = "enc:"

// Record is the on-disk credential state: identity plus the last token.
type Record struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Store keeps one Record in a JSON file. With a cipher configured the
// password and token are sealed at rest.
type Store struct {
	path string
	aead *crypto.AEAD
}

func New(path string, aead *crypto.AEAD) *Store {
	return &Store{path: path, aead: aead}
}

func (s *Store) Path() string { return s.path }

// Load returns the stored record. A missing, unreadable or malformed file
// yields an empty record. Sealed fields that cannot be opened are cleared.
func (s *Store) Load() Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Record{}
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}
	}
	r.Password = s.open(r.Password)
	r.Token = s.open(r.Token)
	return r
}

func (s *Store) Save(r Record) error {
	var err error
	if r.Password, err = s.seal(r.Password); err != nil {
		return errs.Wrap(err, "seal password")
	}
	if r.Token, err = s.seal(r.Token); err != nil {
		return errs.Wrap(err, "seal token")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errs.Wrap(err, "create config dir")
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *Store) seal(v string) (string, error) {
	if s.aead == nil || v == "" {
		return v, nil
	}
	ct, err := s.aead.EncryptToString(v)
	if err != nil {
		return "", err
	}
	return sealedPrefix + ct, nil
}

func (s *Store) open(v string) string {
	if !strings.HasPrefix(v, sealedPrefix) {
		return v
	}
	if s.aead == nil {
		return ""
	}
	pt, err := s.aead.DecryptString(strings.TrimPrefix(v, sealedPrefix))
	if err != nil {
		return ""
	}
	return pt
}
