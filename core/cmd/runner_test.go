package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/labbot/core/config"
	coretelegram "github.com/m3rciful/labbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ stopped *bool }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStop: func(context.Context, coretelegram.Runtime) error {
			*a.stopped = true
			return nil
		},
	}, nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("LABBOT_CONFIG", "/etc/labbot/env.yaml")
	tests := []struct {
		opts Options
		want string
	}{
		{Options{ConfigPath: "flag.yaml", ConfigEnvVar: "LABBOT_CONFIG"}, "flag.yaml"},
		{Options{ConfigEnvVar: "LABBOT_CONFIG", DefaultConfigPath: "config.yaml"}, "/etc/labbot/env.yaml"},
		{Options{ConfigEnvVar: "UNSET_LABBOT_CONFIG", DefaultConfigPath: "config.yaml"}, "config.yaml"},
		{Options{ConfigEnvVar: "UNSET_LABBOT_CONFIG"}, ""},
	}
	for _, tt := range tests {
		if got := ResolveConfigPath(tt.opts); got != tt.want {
			t.Errorf("ResolveConfigPath(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

func TestRunWiresLifecycleHooks(t *testing.T) {
	var loadedFrom string
	stopped := false
	err := Run(Options{
		ConfigEnvVar: "UNSET_LABBOT_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedFrom = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app{stopped: &stopped}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadedFrom != "" {
		t.Fatalf("config path = %q, want env-only", loadedFrom)
	}
	if !stopped {
		t.Fatal("application OnStop was not chained")
	}
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("db unreachable")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil },
		Bootstrap:  func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want wrapped bootstrap error", err)
	}
}
