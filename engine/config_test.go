package engine

import (
	"testing"
	"time"

	"github.com/embedkit/browser-bridge/errors"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing cache path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "minimal valid",
			cfg:  Config{CachePath: "/tmp/cache"},
		},
		{
			name:    "privileged debug port",
			cfg:     Config{CachePath: "/tmp/cache", RemoteDebuggingPort: 80},
			wantErr: true,
		},
		{
			name:    "debug port too large",
			cfg:     Config{CachePath: "/tmp/cache", RemoteDebuggingPort: 70000},
			wantErr: true,
		},
		{
			name: "debug port in range",
			cfg:  Config{CachePath: "/tmp/cache", RemoteDebuggingPort: 9222},
		},
		{
			name:    "pump interval under cooperative policy",
			cfg:     Config{CachePath: "/tmp/cache", PumpPolicy: PumpCooperative, PumpInterval: time.Millisecond},
			wantErr: true,
		},
		{
			name: "pump interval under dedicated policy",
			cfg:  Config{CachePath: "/tmp/cache", PumpPolicy: PumpDedicated, PumpInterval: time.Millisecond},
		},
		{
			name:    "negative init timeout",
			cfg:     Config{CachePath: "/tmp/cache", InitTimeout: -time.Second},
			wantErr: true,
		},
		{
			name:    "unknown pump policy",
			cfg:     Config{CachePath: "/tmp/cache", PumpPolicy: PumpPolicy(42)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.IsConfig(err) {
					t.Errorf("error kind = %v, want config", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{CachePath: "/tmp/cache"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.PumpInterval != DefaultPumpInterval {
		t.Errorf("pump interval = %v, want %v", cfg.PumpInterval, DefaultPumpInterval)
	}
	if cfg.InitTimeout != DefaultInitTimeout {
		t.Errorf("init timeout = %v, want %v", cfg.InitTimeout, DefaultInitTimeout)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdown timeout = %v, want %v", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.Logger == nil {
		t.Error("nil logger should default to a no-op logger")
	}
}

func TestConfigDefaultsCooperative(t *testing.T) {
	cfg := Config{CachePath: "/tmp/cache", PumpPolicy: PumpCooperative}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	// No ticker runs under the cooperative policy; the interval stays unset.
	if cfg.PumpInterval != 0 {
		t.Errorf("pump interval = %v, want 0", cfg.PumpInterval)
	}
}

func TestPumpPolicyString(t *testing.T) {
	if PumpDedicated.String() != "dedicated" || PumpCooperative.String() != "cooperative" {
		t.Error("pump policy names changed")
	}
}
