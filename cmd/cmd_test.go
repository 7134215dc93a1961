package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/boya-scheduler/internal/course"
	"github.com/example/boya-scheduler/internal/errs"
	"github.com/example/boya-scheduler/internal/store"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "boyasched dev")
}

func TestKeys(t *testing.T) {
	out, err := run(t, "", "keys")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for i, name := range []string{"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY", "BOYA_CRED_KEY"} {
		prefix := "export " + name + "="
		require.True(t, strings.HasPrefix(lines[i], prefix), lines[i])
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(lines[i], prefix))
		require.NoError(t, err)
		require.Len(t, b, 32)
	}
}

func TestRenderOfferings(t *testing.T) {
	loc := time.FixedZone("CST", 8*60*60)
	var buf bytes.Buffer
	err := renderOfferings(&buf, []course.Offering{{
		ID:       42,
		Name:     "Calligraphy",
		Teacher:  "Wang",
		Capacity: course.Capacity{Current: 3, Max: 30},
		Window: course.Window{
			Open:  time.Date(2024, 5, 1, 19, 0, 0, 0, loc),
			Close: time.Date(2024, 5, 2, 19, 0, 0, 0, loc),
		},
	}}, loc)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "Calligraphy")
	require.Contains(t, lines[1], "3/30")
	require.Contains(t, lines[1], "05-01 19:00 ~ 05-02 19:00")
	require.Contains(t, lines[1], "- ~ -")
}

func TestReadLine(t *testing.T) {
	ctx := context.Background()
	got, err := readLine(ctx, strings.NewReader("12\r\nrest"))
	require.NoError(t, err)
	require.Equal(t, "12", got)

	got, err = readLine(ctx, strings.NewReader("7"))
	require.NoError(t, err)
	require.Equal(t, "7", got)

	_, err = readLine(ctx, strings.NewReader(""))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadLineCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := readLine(ctx, r)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChooserCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	ch := &tableChooser{in: r, out: &out, loc: time.UTC}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Choose(ctx, []course.Offering{{ID: 7, Name: "Music", Capacity: course.Capacity{Max: 10}}})
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, out.String(), "Type ID to select course: ")
}

func TestPromptPasswordCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := promptPassword(ctx, r, &out)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "Password: ", out.String())
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errs.WithHint(errors.New("query failed"), "consider login again"))
	require.Equal(t, "[Error]: query failed\n[Info]: Consider login again\n", buf.String())
}

// boyaServer fakes the SSO and course service for the command tests.
func boyaServer(t *testing.T, opens time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if r.PostForm.Get("password") == "secret" {
				http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "TGT-1", Path: "/"})
				fmt.Fprint(w, "ok")
				return
			}
		}
		fmt.Fprint(w, `<form><input type="hidden" name="execution" value="e1"></form>`)
	})
	mux.HandleFunc("/sscv/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("CASTGC"); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/home?token=tok-1", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/sscv/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("auth_token") != "tok-1" {
			fmt.Fprint(w, `{"status":"1","errmsg":"token invalid"}`)
			return
		}
		if r.URL.Path == "/sscv/queryStudentSemesterCourseByPage" {
			c := map[string]any{
				"id": 7, "courseName": "Music", "courseMaxCount": 10, "courseCurrentCount": 1,
				"courseSelectStartDate": opens.Format("2006-01-02 15:04:05"),
				"courseSelectEndDate":   opens.Add(48 * time.Hour).Format("2006-01-02 15:04:05"),
			}
			b, _ := json.Marshal(map[string]any{"status": "0", "data": map[string]any{"content": []any{c}}})
			_, _ = w.Write(b)
			return
		}
		fmt.Fprint(w, `{"status":"0","data":{}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BOYA_SSO_URL", srv.URL)
	t.Setenv("BOYA_API_URL", srv.URL)
	t.Setenv("BOYA_TIMEZONE", "UTC")
	t.Setenv("BOYA_CONFIG_FILE", filepath.Join(dir, "config.json"))
	t.Setenv("BOYA_COOKIE_FILE", filepath.Join(dir, "cookie.json"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestLoginQueryDrop(t *testing.T) {
	srv := boyaServer(t, time.Now().UTC().Add(-time.Hour))
	dir := setupEnv(t, srv)

	out, err := run(t, "", "login", "-u", "student", "-p", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Login successfully")

	rec := store.New(filepath.Join(dir, "config.json"), nil).Load()
	require.Equal(t, store.Record{Username: "student", Password: "secret", Token: "tok-1"}, rec)
	_, err = os.Stat(filepath.Join(dir, "cookie.json"))
	require.NoError(t, err)

	out, err = run(t, "7\n", "query")
	require.NoError(t, err)
	require.Contains(t, out, "Music")
	require.Contains(t, out, "Type ID to select course: ")
	require.Contains(t, out, "Select successfully")
	require.NotContains(t, out, "Waiting")

	out, err = run(t, "", "drop", "-i", "7")
	require.NoError(t, err)
	require.Contains(t, out, "Drop successfully")
}

func TestQueryWithoutLogin(t *testing.T) {
	srv := boyaServer(t, time.Now().UTC())
	setupEnv(t, srv)

	_, err := run(t, "7\n", "query")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ErrAuth))

	var buf bytes.Buffer
	printError(&buf, err)
	require.Contains(t, buf.String(), "[Info]: Run login first")
}

func TestQueryUnknownID(t *testing.T) {
	srv := boyaServer(t, time.Now().UTC().Add(-time.Hour))
	dir := setupEnv(t, srv)
	require.NoError(t, store.New(filepath.Join(dir, "config.json"), nil).Save(store.Record{Token: "tok-1"}))

	_, err := run(t, "99\n", "query")
	require.True(t, errs.Is(err, errs.ErrValidation))
}

func TestLoginWrongPassword(t *testing.T) {
	srv := boyaServer(t, time.Now().UTC())
	dir := setupEnv(t, srv)

	_, err := run(t, "", "login", "-u", "student", "-p", "nope")
	require.True(t, errs.Is(err, errs.ErrAuth))

	// identity is kept even though login failed
	rec := store.New(filepath.Join(dir, "config.json"), nil).Load()
	require.Equal(t, "student", rec.Username)
	require.Empty(t, rec.Token)
}

func TestLoginPromptsForPassword(t *testing.T) {
	srv := boyaServer(t, time.Now().UTC())
	setupEnv(t, srv)

	out, err := run(t, "secret\n", "login", "-u", "student")
	require.NoError(t, err)
	require.Contains(t, out, "Password: ")
	require.Contains(t, out, "Login successfully")
}
