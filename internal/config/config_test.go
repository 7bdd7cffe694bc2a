package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeProcessorsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "processors.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProcessorsValid(t *testing.T) {
	path := writeProcessorsFile(t, `[
		{"name": "classic", "profile": "redirect-classic", "secret": "s3cr3t"},
		{"name": "invoice", "profile": "basic-auth", "username": "merchant", "password": "hunter2"},
		{"name": "hosted", "profile": "header-hmac", "secret": "k", "reconcile_max_attempts": 3, "reconcile_delay_seconds": 1}
	]`)

	configs, err := LoadProcessors(path)
	require.NoError(t, err)
	require.Len(t, configs, 3)

	require.Equal(t, "s3cr3t", configs[0].SigningSecret())
	require.Equal(t, "merchant:hunter2", configs[1].SigningSecret())
	require.Equal(t, 3, configs[2].MaxAttempts())
	require.Equal(t, time.Second, configs[2].ReconcileDelay())
}

func TestLoadProcessorsDefaults(t *testing.T) {
	path := writeProcessorsFile(t, `[{"name": "classic", "profile": "redirect-classic", "secret": "s"}]`)

	configs, err := LoadProcessors(path)
	require.NoError(t, err)
	require.Equal(t, 5, configs[0].MaxAttempts())
	require.Equal(t, 2*time.Second, configs[0].ReconcileDelay())
}

func TestLoadProcessorsRejectsMissingName(t *testing.T) {
	path := writeProcessorsFile(t, `[{"profile": "redirect-classic", "secret": "s"}]`)
	_, err := LoadProcessors(path)
	require.ErrorContains(t, err, "name is required")
}

func TestLoadProcessorsRejectsDuplicateName(t *testing.T) {
	path := writeProcessorsFile(t, `[
		{"name": "classic", "profile": "redirect-classic", "secret": "s"},
		{"name": "classic", "profile": "nvp-md5", "secret": "s"}
	]`)
	_, err := LoadProcessors(path)
	require.ErrorContains(t, err, "duplicate name")
}

func TestLoadProcessorsRejectsMissingSecret(t *testing.T) {
	path := writeProcessorsFile(t, `[{"name": "classic", "profile": "redirect-classic"}]`)
	_, err := LoadProcessors(path)
	require.ErrorContains(t, err, "secret or username/password is required")
}

func TestLoadProcessorsRejectsMalformedJSON(t *testing.T) {
	path := writeProcessorsFile(t, `{not json`)
	_, err := LoadProcessors(path)
	require.Error(t, err)
}

func TestLoadProcessorsMissingFile(t *testing.T) {
	_, err := LoadProcessors(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
