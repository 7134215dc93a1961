package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/net/publicsuffix"

	"github.com/example/boya-scheduler/internal/errs"
)

const sessionName = "boyasched_session"

// Jar is an http.CookieJar that remembers every cookie it was given so the
// SSO session can be written to disk and replayed on the next run.
type Jar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]entry
}

type entry struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// key identifies a cookie the way the jar does: by the domain it applies to
// (the setting host for host-only cookies), its path and its name.
func (e entry) key(host string) string {
	d := strings.TrimPrefix(strings.ToLower(e.Domain), ".")
	if d == "" {
		d = host
	}
	return d + ";" + e.Path + ";" + e.Name
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

// defaultPath is the path a cookie without a usable Path attribute gets.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func NewJar() *Jar {
	// cookiejar.New never returns an error
	j, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Jar{jar: j, entries: map[string]entry{}}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	host := strings.ToLower(u.Hostname())
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		e := entry{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if e.Path == "" || e.Path[0] != '/' {
			e.Path = defaultPath(u.Path)
		}
		if c.MaxAge < 0 {
			e.Expires = now
		} else if c.MaxAge > 0 {
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		k := e.key(host)
		if e.expired(now) {
			delete(j.entries, k)
			continue
		}
		j.entries[k] = e
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Len reports how many live cookies the jar would persist.
func (j *Jar) Len() int {
	return len(j.snapshot())
}

func (j *Jar) snapshot() []entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	out := make([]entry, 0, len(j.entries))
	for _, e := range j.entries {
		if !e.expired(now) {
			out = append(out, e)
		}
	}
	return out
}

func (j *Jar) restore(entries []entry) {
	for _, e := range entries {
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}
		j.SetCookies(u, []*http.Cookie{{
			Name:     e.Name,
			Value:    e.Value,
			Path:     e.Path,
			Domain:   e.Domain,
			Expires:  e.Expires,
			Secure:   e.Secure,
			HttpOnly: e.HttpOnly,
		}})
	}
}

// Codec turns the cookie list into file contents and back. Without keys it
// writes plain JSON.
type Codec struct{ sc *securecookie.SecureCookie }

// NewCodec signs (and, with a block key, encrypts) the saved jar. A nil
// hashKey selects plain JSON.
func NewCodec(hashKey, blockKey []byte) *Codec {
	if len(hashKey) == 0 {
		return &Codec{}
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int((14 * 24 * time.Hour).Seconds()))
	sc.MaxLength(0)
	return &Codec{sc: sc}
}

func (c *Codec) encode(entries []entry) ([]byte, error) {
	if c == nil || c.sc == nil {
		return json.MarshalIndent(entries, "", "  ")
	}
	s, err := c.sc.Encode(sessionName, entries)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (c *Codec) decode(data []byte) ([]entry, error) {
	var entries []entry
	if c == nil || c.sc == nil {
		err := json.Unmarshal(data, &entries)
		return entries, err
	}
	err := c.sc.Decode(sessionName, strings.TrimSpace(string(data)), &entries)
	return entries, err
}

// Load reads a saved jar. A missing file gives an empty jar and no error; an
// undecodable file gives an empty jar and the decode error.
func Load(path string, codec *Codec) (*Jar, error) {
	j := NewJar()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return j, nil
		}
		return j, errs.Wrap(err, "read session file")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return j, nil
	}
	entries, err := codec.decode(data)
	if err != nil {
		return j, errs.Wrap(err, "decode session file")
	}
	j.restore(entries)
	return j, nil
}

// Save writes every live cookie in j to path.
func Save(path string, codec *Codec, j *Jar) error {
	data, err := codec.encode(j.snapshot())
	if err != nil {
		return errs.Wrap(err, "encode session")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errs.Wrap(err, "create session dir")
		}
	}
	return os.WriteFile(path, data, 0o600)
}
