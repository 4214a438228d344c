/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind        string
	correct     time.Duration
	dataDir     string
	envFile     string
	fresh       bool
	logPretty   bool
	manifest    string
	mediaDir    string
	natsSubject string
	natsURL     string
	penalty     time.Duration
	port        int
	prefix      string
	profile     bool
	tick        time.Duration
	tlsCert     string
	tlsKey      string
	total       time.Duration
	verbose     bool
	version     bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	for name, d := range map[string]time.Duration{
		"--total":   c.total,
		"--penalty": c.penalty,
		"--correct": c.correct,
		"--tick":    c.tick,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid duration for %s (must be positive): %s", name, d)
		}
	}
	if c.natsURL != "" && c.natsSubject == "" {
		return errors.New("--nats-subject must be set when --nats-url is provided")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// bindFlags fills every flag not given on the command line from the
// environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ARENAFLOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "arenafloor",
		Short:         "Runs a live trivia duel show: an operator console and any number of audience displays.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.envFile != "" {
				if err := godotenv.Load(cfg.envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
				bindFlags(v, cmd.Flags())
			}
			setupLogging(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.SetNormalizeFunc(normalize)
	pfs.StringVar(&cfg.envFile, "env-file", "", "load environment variables from this file before reading flags (env: ARENAFLOOR_ENV_FILE)")
	pfs.BoolVar(&cfg.logPretty, "log-pretty", false, "write human-readable logs instead of JSON (env: ARENAFLOOR_LOG_PRETTY)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ARENAFLOOR_VERBOSE)")

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ARENAFLOOR_BIND)")
	fs.DurationVar(&cfg.correct, "correct", 1*time.Second, "default reveal time after a correct answer (env: ARENAFLOOR_CORRECT)")
	fs.StringVar(&cfg.dataDir, "data-dir", "data", "directory holding the saved show, settings and backups (env: ARENAFLOOR_DATA_DIR)")
	fs.BoolVar(&cfg.fresh, "fresh", false, "archive any saved show and start a new one (env: ARENAFLOOR_FRESH)")
	fs.StringVar(&cfg.manifest, "manifest", "manifest.json", "content manifest, json or yaml (env: ARENAFLOOR_MANIFEST)")
	fs.StringVar(&cfg.mediaDir, "media-dir", "media", "directory of category images served under /media/ (env: ARENAFLOOR_MEDIA_DIR)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "arenafloor.show", "subject to mirror broadcasts onto (env: ARENAFLOOR_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "mirror broadcasts to this NATS server (env: ARENAFLOOR_NATS_URL)")
	fs.DurationVar(&cfg.penalty, "penalty", 3*time.Second, "default penalty window before skipping an item (env: ARENAFLOOR_PENALTY)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ARENAFLOOR_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ARENAFLOOR_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ARENAFLOOR_PROFILE)")
	fs.DurationVar(&cfg.tick, "tick", 50*time.Millisecond, "interval between clock settlements during a duel (env: ARENAFLOOR_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ARENAFLOOR_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ARENAFLOOR_TLS_KEY)")
	fs.DurationVar(&cfg.total, "total", 45*time.Second, "default time on each side of the duel clock (env: ARENAFLOOR_TOTAL)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ARENAFLOOR_VERSION)")

	bindFlags(v, pfs)
	bindFlags(v, fs)

	cmd.AddCommand(newManifestCmd(v), newWatchCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("arenafloor v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
