package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func key(n int) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", n)))
}

func TestFromEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "buaa-boya-config.json", cfg.ConfigFile)
	require.Equal(t, "buaa-boya-cookie.json", cfg.CookieFile)
	require.Equal(t, "https://bykc.buaa.edu.cn", cfg.APIURL)
	require.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "Asia/Shanghai", cfg.Location.String())
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Nil(t, cfg.CredKey)
	require.Nil(t, cfg.CookieHashKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOYA_CONFIG_FILE", "/tmp/cfg.json")
	t.Setenv("BOYA_TIMEZONE", "UTC")
	t.Setenv("BOYA_HTTP_TIMEOUT", "3s")
	t.Setenv("BOYA_CRED_KEY", key(32))
	t.Setenv("COOKIE_HASH_KEY", key(64))
	t.Setenv("COOKIE_BLOCK_KEY", key(16))

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cfg.json", cfg.ConfigFile)
	require.Equal(t, time.UTC, cfg.Location)
	require.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	require.Len(t, cfg.CredKey, 32)
	require.Len(t, cfg.CookieHashKey, 64)
	require.Len(t, cfg.CookieBlockKey, 16)
}

func TestFromEnvKeyFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "cred.key")
	require.NoError(t, os.WriteFile(path, []byte(key(32)+"\n"), 0o600))
	t.Setenv("BOYA_CRED_KEY", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.CredKey, 32)
}

func TestFromEnvDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVICE_NAME=from-dotenv\n"), 0o600))
	t.Setenv("SERVICE_NAME", "")
	os.Unsetenv("SERVICE_NAME")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.ServiceName)
	os.Unsetenv("SERVICE_NAME")
}

func TestFromEnvInvalid(t *testing.T) {
	cases := map[string][2]string{
		"bad timezone":       {"BOYA_TIMEZONE", "Mars/Olympus"},
		"bad timeout":        {"BOYA_HTTP_TIMEOUT", "soon"},
		"zero timeout":       {"BOYA_HTTP_TIMEOUT", "0s"},
		"short cred key":     {"BOYA_CRED_KEY", key(16)},
		"not base64":         {"BOYA_CRED_KEY", "%%%"},
		"block without hash": {"COOKIE_BLOCK_KEY", key(32)},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}
