package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/curlcount/internal/app"
	"github.com/ayusman/curlcount/internal/config"
	"github.com/ayusman/curlcount/internal/hook"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":7000\"\ncamera:\n  device: 2\nsource: camera\n")

	opts := &options{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--source", "remote", "--addr", ":9090"}))

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, config.SourceRemote, cfg.Source)
	assert.Equal(t, 2, cfg.Camera.Device, "unset flag keeps the file value")
}

func TestLoadConfig_FileOnly(t *testing.T) {
	path := writeConfig(t, "counter:\n  low_threshold: 50\n  high_threshold: 130\n")

	opts := &options{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"-c", path}))

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, 50.0, cfg.Counter.LowThreshold)
	assert.Equal(t, 130.0, cfg.Counter.HighThreshold)
}

func TestLoadConfig_InvalidSource(t *testing.T) {
	opts := &options{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--source", "file"}))

	_, err := loadConfig(cmd, opts)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestBrowserURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", browserURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", browserURL("127.0.0.1:9000"))
}

func TestFindWebDir(t *testing.T) {
	dataDir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)

	// Run from an empty directory so the relative candidates miss.
	empty := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, os.MkdirAll(empty, 0755))
	require.NoError(t, os.Chdir(empty))
	t.Cleanup(func() { os.Chdir(wd) })

	assert.Empty(t, findWebDir(dataDir))

	web := filepath.Join(dataDir, "web")
	require.NoError(t, os.Mkdir(web, 0755))
	assert.Equal(t, web, findWebDir(dataDir))
}

func TestStartHooks_DeliversStopOnShutdown(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	logPath := filepath.Join(t.TempDir(), "events.log")

	hookDir := filepath.Join(cfg.HooksDir(), "recorder")
	require.NoError(t, os.MkdirAll(hookDir, 0755))
	manifest, err := json.Marshal(hook.Manifest{Name: "recorder", Executable: "record.sh", Events: []string{"state"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, hook.ManifestFile), manifest, 0644))
	script := "#!/bin/sh\nline=$(cat)\necho \"$line\" >> \"" + logPath + "\"\necho '{\"success\":true}'\n"
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, "record.sh"), []byte(script), 0755))

	a := app.New(app.Config{Source: app.SourceRemote})
	closeHooks := startHooks(cfg, a)
	require.NoError(t, a.Start())

	a.Close()
	closeHooks()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Fields(string(data))
	require.NotEmpty(t, lines)

	var last hook.Request
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "state", last.Event)
	assert.False(t, last.Running, "final event reports the stopped session")
}

func TestStartHooks_NoHooks(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	a := app.New(app.Config{Source: app.SourceRemote})
	closeHooks := startHooks(cfg, a)
	a.Close()
	closeHooks()
}
