package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// isolate points every config search path at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Chdir(dir)
	viper.Reset()
	SetConfigPath("")
	t.Cleanup(func() {
		viper.Reset()
		SetConfigPath("")
		Set(nil)
	})
	return dir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		isolate(t)

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}

		config := Get()
		if config == nil {
			t.Fatal("Get() returned nil after Init()")
		}
		if *config != DefaultConfig {
			t.Errorf("Expected defaults, got %+v", *config)
		}
	})

	t.Run("reads the override file", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.toml")
		writeConfig(t, path, `[window]
width = 1280
title = "Mario Kart"
escape_closes = true

[input]
scale_x = 1.5
`)
		SetConfigPath(path)

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}
		config := Get()
		if config.Window.Width != 1280 || config.Window.Height != DefaultConfig.Window.Height {
			t.Errorf("Expected 1280x%d, got %dx%d", DefaultConfig.Window.Height, config.Window.Width, config.Window.Height)
		}
		if config.Window.Title != "Mario Kart" {
			t.Errorf("Expected title from file, got %q", config.Window.Title)
		}
		if !config.Window.EscapeCloses {
			t.Error("Expected escape_closes from file")
		}
		if config.Input.ScaleX != 1.5 || config.Input.ScaleY != 1.0 {
			t.Errorf("Expected input scale 1.5x1, got %vx%v", config.Input.ScaleX, config.Input.ScaleY)
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		dir := isolate(t)
		writeConfig(t, filepath.Join(dir, "emuwl.toml"), "[window]\nheight = 720\n")
		t.Setenv("EMUWL_WINDOW_HEIGHT", "1080")

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}
		if h := Get().Window.Height; h != 1080 {
			t.Errorf("Expected env height 1080, got %d", h)
		}
	})

	t.Run("handles invalid TOML gracefully", func(t *testing.T) {
		dir := isolate(t)
		writeConfig(t, filepath.Join(dir, "emuwl.toml"), "[window\nwidth = 640")

		err := Init()
		if err == nil {
			t.Fatal("Expected an error for invalid TOML")
		}
		if !strings.Contains(err.Error(), "error reading config file") {
			t.Errorf("Expected read error, got: %v", err)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		dir := isolate(t)
		writeConfig(t, filepath.Join(dir, "emuwl.toml"), "[window]\nwidth = 0\n")

		err := Init()
		if err == nil || !strings.Contains(err.Error(), "invalid window size") {
			t.Errorf("Expected window size error, got: %v", err)
		}
	})

	t.Run("missing override file uses defaults", func(t *testing.T) {
		dir := isolate(t)
		SetConfigPath(filepath.Join(dir, "nope", "emuwl.toml"))

		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}
		if Get().Window.Width != DefaultConfig.Window.Width {
			t.Error("Expected default width")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero height", func(c *Config) { c.Window.Height = 0 }, "invalid window size"},
		{"negative poll interval", func(c *Config) { c.Input.PollIntervalMs = -1 }, "invalid input poll interval"},
		{"zero refresh rate", func(c *Config) { c.Render.RefreshRate = 0 }, "invalid refresh rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig
			tt.mutate(&c)
			err := c.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestConfigPathResolution(t *testing.T) {
	tests := []struct {
		name         string
		setupEnv     func(t *testing.T)
		expectedPath string
	}{
		{
			name: "override",
			setupEnv: func(t *testing.T) {
				SetConfigPath("/tmp/custom.toml")
			},
			expectedPath: "/tmp/custom.toml",
		},
		{
			name: "xdg config home",
			setupEnv: func(t *testing.T) {
				t.Setenv("XDG_CONFIG_HOME", "/home/testuser/.xdg")
			},
			expectedPath: "/home/testuser/.xdg/emuwl/emuwl.toml",
		},
		{
			name: "home directory",
			setupEnv: func(t *testing.T) {
				t.Setenv("XDG_CONFIG_HOME", "")
				t.Setenv("HOME", "/home/testuser")
			},
			expectedPath: "/home/testuser/.config/emuwl/emuwl.toml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			SetConfigPath("")
			defer SetConfigPath("")
			tt.setupEnv(t)

			if path := GetConfigPath(); path != tt.expectedPath {
				t.Errorf("Expected path %s, got %s", tt.expectedPath, path)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := isolate(t)
	xdgConfig := filepath.Join(dir, "xdg", "emuwl", "emuwl.toml")
	homeConfig := filepath.Join(dir, "home", ".config", "emuwl", "emuwl.toml")
	currentConfig := filepath.Join(dir, "emuwl.toml")

	writeConfig(t, xdgConfig, `[window]
title = "xdg"`)
	writeConfig(t, homeConfig, `[window]
title = "home"`)
	writeConfig(t, currentConfig, `[window]
title = "current"`)

	steps := []struct {
		expected string
		remove   string
	}{
		{"xdg", xdgConfig},
		{"home", homeConfig},
		{"current", currentConfig},
		{DefaultConfig.Window.Title, ""},
	}
	for _, step := range steps {
		viper.Reset()
		if err := Init(); err != nil {
			t.Fatalf("Init() failed: %v", err)
		}
		if title := Get().Window.Title; title != step.expected {
			t.Errorf("Expected title %q, got %q", step.expected, title)
		}
		if step.remove != "" {
			os.Remove(step.remove)
		}
	}
}

func TestWatchWithoutFile(t *testing.T) {
	isolate(t)
	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if Watch(func(*Config) {}) {
		t.Error("Watch() should have nothing to watch")
	}
}

func TestSave(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "saved", "emuwl.toml")
	SetConfigPath(path)

	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	viper.Set("window.width", 1024)
	if err := Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	viper.Reset()
	if err := Init(); err != nil {
		t.Fatalf("Init() after save failed: %v", err)
	}
	if w := Get().Window.Width; w != 1024 {
		t.Errorf("Expected saved width 1024, got %d", w)
	}
}

func TestWatch(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "emuwl.toml")
	writeConfig(t, path, "[input]\nscale_x = 1.0\n")
	SetConfigPath(path)
	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	changed := make(chan *Config, 4)
	watching := Watch(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if !watching {
		t.Fatal("Watch() found no config file")
	}

	writeConfig(t, path, "[input]\nscale_x = 2.0\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Input.ScaleX == 2.0 {
				return
			}
		case <-deadline:
			t.Fatal("config change not delivered")
		}
	}
}
