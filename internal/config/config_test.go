package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANCHORSTACK_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	c, err := Load(New(""), false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Solve.Gap != 8 {
		t.Errorf("solve.gap = %v, want 8", c.Solve.Gap)
	}
	if c.Probe.AnchorSelector != `[data-anchor-id="%s"]` {
		t.Errorf("probe.anchor_selector = %q", c.Probe.AnchorSelector)
	}
	if c.Probe.NavTimeout != 30*time.Second || c.Probe.FrameInterval != 16*time.Millisecond {
		t.Errorf("probe durations = %v, %v", c.Probe.NavTimeout, c.Probe.FrameInterval)
	}
	if c.Server.Addr != "127.0.0.1:8080" || c.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("server = %+v", c.Server)
	}
	if c.Cache.Backend != CacheFile || c.Cache.Redis.Prefix != "anchorstack:" {
		t.Errorf("cache = %+v", c.Cache)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
[solve]
gap = 4

[server]
addr = ":9000"
timeout = "5s"

[cache]
backend = "redis"

[cache.redis]
addr = "redis:6379"
`)

	// File beats defaults.
	c, err := Load(New(path), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Solve.Gap != 4 || c.Server.Addr != ":9000" || c.Server.Timeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Cache.Backend != CacheRedis || c.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("cache = %+v", c.Cache)
	}

	// Env beats file.
	t.Setenv("ANCHORSTACK_SOLVE_GAP", "2")
	t.Setenv("ANCHORSTACK_SERVER_ADDR", ":9100")
	v := New(path)
	c, err = Load(v, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Solve.Gap != 2 || c.Server.Addr != ":9100" {
		t.Errorf("env values not applied: gap=%v addr=%q", c.Solve.Gap, c.Server.Addr)
	}

	// Flags beat env, but only when set.
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("gap", 8, "")
	fs.String("addr", "", "")
	if err := fs.Parse([]string{"--gap", "1"}); err != nil {
		t.Fatal(err)
	}
	v = New(path)
	if err := BindFlag(v, "solve.gap", fs.Lookup("gap")); err != nil {
		t.Fatal(err)
	}
	if err := BindFlag(v, "server.addr", fs.Lookup("addr")); err != nil {
		t.Fatal(err)
	}
	c, err = Load(v, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Solve.Gap != 1 {
		t.Errorf("flag gap = %v, want 1", c.Solve.Gap)
	}
	if c.Server.Addr != ":9100" {
		t.Errorf("unset flag overrode env: addr = %q", c.Server.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode errs.Code
	}{
		{"negative gap", "[solve]\ngap = -1\n", errs.ErrCodeInvalidGap},
		{"bad selector", "[probe]\nanchor_selector = \"#anchor\"\n", errs.ErrCodeInvalidSelector},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n", errs.ErrCodeInvalidInput},
		{"bad viewport", "[probe]\nwidth = 0\n", errs.ErrCodeInvalidInput},
		{"malformed toml", "[solve\n", errs.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(writeConfig(t, tt.body)), true)
			if !errs.Is(err, tt.wantCode) {
				t.Errorf("got %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(filepath.Join(t.TempDir(), "nope.toml")), true)
	if !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("got %v, want FILE_NOT_FOUND", err)
	}
}

func TestBindFlagNil(t *testing.T) {
	if err := BindFlag(New(""), "solve.gap", nil); err == nil {
		t.Error("binding a nil flag should fail")
	}
}
