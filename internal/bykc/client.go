package bykc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/boya-scheduler/internal/errs"
)

// Client talks to the BUAA SSO and the Boya course service. It satisfies the
// authentication, catalog and selection collaborators of the orchestrator.
type Client struct {
	hc     *http.Client
	ssoURL string
	apiURL string
	loc    *time.Location
}

type Options struct {
	SSOURL   string
	APIURL   string
	Jar      http.CookieJar
	Timeout  time.Duration
	Location *time.Location
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Client{
		hc:     &http.Client{Timeout: opts.Timeout, Jar: opts.Jar},
		ssoURL: strings.TrimRight(opts.SSOURL, "/"),
		apiURL: strings.TrimRight(opts.APIURL, "/"),
		loc:    opts.Location,
	}
}

const maxBody = 4 << 20

// envelope is the wrapper every /sscv endpoint answers with. Status "0"
// means success; anything else carries a message in Errmsg.
type envelope struct {
	Status string          `json:"status"`
	Errmsg string          `json:"errmsg"`
	Data   json.RawMessage `json:"data"`
}

// call posts a JSON payload to an /sscv endpoint and returns the data field.
// A non-zero status is returned as an error marked errs.ErrRejected.
func (c *Client) call(ctx context.Context, path, token string, payload any) (json.RawMessage, error) {
	jb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("auth_token", token)
	h.Set("content-type", "application/json;charset=utf-8")
	status, body, err := c.do(ctx, http.MethodPost, c.apiURL+path, h, jb)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, errs.Newf("%s: unexpected status %d", path, status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errs.Wrapf(err, "%s: decode response", path)
	}
	if env.Status != "0" {
		msg := env.Errmsg
		if msg == "" {
			msg = "status " + env.Status
		}
		return nil, errs.Mark(errs.Newf("%s: %s", path, msg), errs.ErrRejected)
	}
	return env.Data, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, header http.Header, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("cache-control", "no-cache")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, errs.Wrapf(err, "%s %s", method, req.URL.Path)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return res.StatusCode, nil, errs.Wrap(err, "read body")
	}
	return res.StatusCode, b, nil
}
