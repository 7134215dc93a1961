package bykc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/example/boya-scheduler/internal/errs"
)

const casLoginPath = "/sscv/cas/login"

// SSOLogin signs in to the CAS server with a username and password. The
// resulting ticket-granting cookie lands in the client's jar.
func (c *Client) SSOLogin(ctx context.Context, username, password string) error {
	loginURL := c.ssoURL + "/login?service=" + url.QueryEscape(c.apiURL+casLoginPath)

	status, page, err := c.do(ctx, http.MethodGet, loginURL, nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return errs.Newf("sso login page: unexpected status %d", status)
	}
	execution, ok := formValue(page, "execution")
	if !ok {
		// already signed in; CAS redirected straight to the service
		return nil
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("execution", execution)
	form.Set("_eventId", "submit")
	form.Set("type", "username_password")
	form.Set("submit", "LOGIN")

	h := http.Header{}
	h.Set("content-type", "application/x-www-form-urlencoded")
	status, page, err = c.do(ctx, http.MethodPost, loginURL, h, []byte(form.Encode()))
	if err != nil {
		return err
	}
	if status >= 400 {
		return errs.Mark(errs.Newf("sso login: unexpected status %d", status), errs.ErrRejected)
	}
	if _, again := formValue(page, "execution"); again {
		return errs.Mark(errs.New("sso login: invalid username or password"), errs.ErrRejected)
	}
	return nil
}

// ProgramLogin exchanges the SSO session for a Boya access token. CAS
// redirects back to the service with the token as a query parameter.
func (c *Client) ProgramLogin(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+casLoginPath, nil)
	if err != nil {
		return "", err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return "", errs.Wrap(err, "program login")
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBody))

	if res.StatusCode >= 400 {
		return "", errs.Newf("program login: unexpected status %d", res.StatusCode)
	}
	token := res.Request.URL.Query().Get("token")
	if token == "" {
		return "", errs.New("program login: no token in redirect, sso session missing or expired")
	}
	return token, nil
}

// formValue returns the value attribute of the first input named name.
func formValue(page []byte, name string) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			if t.Data != "input" {
				continue
			}
			var n, v string
			for _, a := range t.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					n = a.Val
				case "value":
					v = a.Val
				}
			}
			if n == name {
				return v, true
			}
		}
	}
}
