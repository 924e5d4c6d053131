package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.Config
		wantLevel zerolog.Level
	}{
		{
			name: "debug level",
			cfg: &config.Config{
				Env:       "development",
				LogLevel:  "debug",
				LogFormat: "json",
			},
			wantLevel: zerolog.DebugLevel,
		},
		{
			name: "info level",
			cfg: &config.Config{
				Env:       "production",
				LogLevel:  "info",
				LogFormat: "json",
			},
			wantLevel: zerolog.InfoLevel,
		},
		{
			name: "warn level",
			cfg: &config.Config{
				Env:       "staging",
				LogLevel:  "warn",
				LogFormat: "json",
			},
			wantLevel: zerolog.WarnLevel,
		},
		{
			name: "unknown level falls back to info",
			cfg: &config.Config{
				Env:       "production",
				LogLevel:  "loud",
				LogFormat: "json",
			},
			wantLevel: zerolog.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.cfg)
			if log == nil {
				t.Fatal("New() returned nil")
			}
			if got := zerolog.GlobalLevel(); got != tt.wantLevel {
				t.Errorf("global level = %s, want %s", got, tt.wantLevel)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	cfg := &config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}
	log := New(cfg)

	// Component logger must be usable without panicking
	comp := log.Component("trainer")
	comp.Debug().Str("run_id", "test").Msg("component logger works")
}

func TestWithFields(t *testing.T) {
	cfg := &config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}
	log := New(cfg)

	fieldLog := log.WithFields(map[string]interface{}{
		"symbol": "TEST",
		"side":   "long",
	})
	if fieldLog == nil {
		t.Fatal("WithFields() returned nil")
	}
	fieldLog.Info("fields logger works")
}
