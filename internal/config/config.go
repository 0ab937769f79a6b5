// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package config defines the server's configuration surface and binds
// it to command-line flags in the style of pkg/cfgstruct's Bind:
// struct fields carry a `default` tag, field names are kebab-cased
// into flag names, and nested structs get a dotted prefix
// (pkg/cfgstruct/bind_test.go's TestBind/TestNesting).
package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Config is the full set of operator-tunable knobs (§6).
type Config struct {
	Addr string `flag:"addr" default:":8000" help:"address to listen on"`

	Database struct {
		DSN             string        `flag:"database.dsn" default:"file::memory:?cache=shared" help:"sqlite DSN for the storage backend"`
		MaxOpenConns    int           `flag:"database.max-open-conns" default:"8" help:"maximum open sql connections"`
		ConnMaxLifetime time.Duration `flag:"database.conn-max-lifetime" default:"1h" help:"maximum connection lifetime"`
	}

	Quota struct {
		Enabled    bool  `flag:"quota.enabled" default:"false" help:"enable per-user quota accounting"`
		Enforce    bool  `flag:"quota.enforce" default:"false" help:"reject writes once quota is exceeded, vs advisory-only"`
		QuotaBytes int64 `flag:"quota.bytes" default:"2097152" help:"quota ceiling in bytes per user"`
	}

	Tokenserver struct {
		Node              string        `flag:"tokenserver.node" default:"" help:"this node's externally-reachable URL"`
		FxAEmailDomain    string        `flag:"tokenserver.fxa-email-domain" default:"api.accounts.firefox.com" help:"synthetic email domain for fxa_uid rows"`
		ServiceID         string        `flag:"tokenserver.service-id" default:"sync-1.5" help:"service identifier used in the user row key"`
		MasterSecret      string        `flag:"tokenserver.master-secret" default:"" help:"HKDF master secret for token signing"`
		MetricsHashSecret string        `flag:"tokenserver.metrics-hash-secret" default:"" help:"HMAC secret for hashed metrics identifiers"`
		DefaultDuration   time.Duration `flag:"tokenserver.default-duration" default:"24h" help:"default storage token lifetime"`
		MaxDuration       time.Duration `flag:"tokenserver.max-duration" default:"72h" help:"maximum storage token lifetime a client may request"`
	}

	Metrics struct {
		Addr string `flag:"metrics.addr" default:":9000" help:"address for the Prometheus-style metrics/health server"`
	}

	Log struct {
		Level string `flag:"log.level" default:"info" help:"zap log level"`
		Dev   bool   `flag:"log.dev" default:"false" help:"use zap's human-readable development encoder"`
	}
}

// Bind registers every tagged field of c as a flag on f. Flag names,
// defaults and help texts are written out here and match each field's
// `flag`, `default` and `help` tags; the tags themselves are not read,
// unlike cfgstruct.Bind's reflective walk over arbitrary structs.
func Bind(f *pflag.FlagSet, c *Config) {
	f.StringVar(&c.Addr, "addr", ":8000", "address to listen on")

	f.StringVar(&c.Database.DSN, "database.dsn", "file::memory:?cache=shared", "sqlite DSN for the storage backend")
	f.IntVar(&c.Database.MaxOpenConns, "database.max-open-conns", 8, "maximum open sql connections")
	f.DurationVar(&c.Database.ConnMaxLifetime, "database.conn-max-lifetime", time.Hour, "maximum connection lifetime")

	f.BoolVar(&c.Quota.Enabled, "quota.enabled", false, "enable per-user quota accounting")
	f.BoolVar(&c.Quota.Enforce, "quota.enforce", false, "reject writes once quota is exceeded, vs advisory-only")
	f.Int64Var(&c.Quota.QuotaBytes, "quota.bytes", 2*1024*1024, "quota ceiling in bytes per user")

	f.StringVar(&c.Tokenserver.Node, "tokenserver.node", "", "this node's externally-reachable URL")
	f.StringVar(&c.Tokenserver.FxAEmailDomain, "tokenserver.fxa-email-domain", "api.accounts.firefox.com", "synthetic email domain for fxa_uid rows")
	f.StringVar(&c.Tokenserver.ServiceID, "tokenserver.service-id", "sync-1.5", "service identifier used in the user row key")
	f.StringVar(&c.Tokenserver.MasterSecret, "tokenserver.master-secret", "", "HKDF master secret for token signing")
	f.StringVar(&c.Tokenserver.MetricsHashSecret, "tokenserver.metrics-hash-secret", "", "HMAC secret for hashed metrics identifiers")
	f.DurationVar(&c.Tokenserver.DefaultDuration, "tokenserver.default-duration", 24*time.Hour, "default storage token lifetime")
	f.DurationVar(&c.Tokenserver.MaxDuration, "tokenserver.max-duration", 72*time.Hour, "maximum storage token lifetime a client may request")

	f.StringVar(&c.Metrics.Addr, "metrics.addr", ":9000", "address for the Prometheus-style metrics/health server")

	f.StringVar(&c.Log.Level, "log.level", "info", "zap log level")
	f.BoolVar(&c.Log.Dev, "log.dev", false, "use zap's human-readable development encoder")
}

// Default returns a Config populated with every default value, for
// tests and for `--help` rendering without parsing args.
func Default() *Config {
	c := &Config{}
	Bind(pflag.NewFlagSet("defaults", pflag.ContinueOnError), c)
	return c
}
