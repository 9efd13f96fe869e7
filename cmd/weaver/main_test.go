package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/profile-weaver/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := fmt.Sprintf(`{"db_path": %q, "download_dir": %q, "metrics_path": %q, "log_level": "error"}`,
		filepath.Join(dir, "profiles.db"), filepath.Join(dir, "downloads"), filepath.Join(dir, "metrics.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func run(t *testing.T, configFile string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configFile}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestCLI_SettingsPersistAcrossCommands(t *testing.T) {
	path := testConfig(t)

	assert.Contains(t, run(t, path, "proxy", "get"), "(none)")
	run(t, path, "proxy", "set", "10.0.0.1:3128")
	assert.Contains(t, run(t, path, "proxy", "get"), "10.0.0.1:3128")

	run(t, path, "upload-url", "set", "https://sink.example/in", "--auto")
	out := run(t, path, "upload-url", "get")
	assert.Contains(t, out, "url: https://sink.example/in")
	assert.Contains(t, out, "auto-upload: true")
}

func TestCLI_CountExportClear(t *testing.T) {
	path := testConfig(t)

	assert.Equal(t, "0", strings.TrimSpace(run(t, path, "count")))
	assert.Equal(t, strings.Join([]string{"id", "url", "name", "age", "location", "photos", "bio", "scrapedAt"}, ","),
		strings.TrimSpace(run(t, path, "export")))

	out := run(t, path, "export", "--save", "--out", "dump.csv")
	assert.Contains(t, out, "dump.csv")
	assert.FileExists(t, filepath.Join(cfg.DownloadDir, "dump.csv"))

	assert.Contains(t, run(t, path, "clear"), "Cleared")
}

func TestCLI_ScrapeRequiresPage(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", testConfig(t), "scrape"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_url")
}

func TestOpenBackend_Memory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	be, err := openBackend(ctx, &config.Config{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.NotNil(t, be.local)
	assert.NotNil(t, be.sync)
	assert.NoError(t, be.close())
}
