package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/wallet-tools/pkg/config"
	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/programs"
	"github.com/code-payments/wallet-tools/pkg/rate"
	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/transfer"
	"github.com/code-payments/wallet-tools/pkg/wallet"
)

const metricsShutdownTimeout = 5 * time.Second

// environment holds everything a command needs once configuration is loaded.
type environment struct {
	log *logrus.Entry

	config     *config.Config
	commitment solana.Commitment
	app        *newrelic.Application

	client    solana.Client
	submitter *transfer.Submitter
	programs  *programs.Table
}

func loadEnvironment(cmd *cobra.Command, opts *rootOptions) (*environment, error) {
	// Only flags set on the command line override the file and environment.
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	for key, name := range map[string]string{
		"keypair_path": "keypair",
		"rpc_endpoint": "rpc",
		"log_level":    "log-level",
	} {
		if flag := flags.Lookup(name); flag != nil && flag.Changed {
			v.Set(key, flag.Value.String())
		}
	}

	cfg, err := config.Load(v, opts.configPath)
	if err != nil {
		return nil, err
	}

	commitment, err := solana.CommitmentFromString(cfg.Commitment)
	if err != nil {
		return nil, err
	}

	var app *newrelic.Application
	if len(cfg.NewRelicLicenseKey) > 0 {
		app, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.AppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return nil, errors.Wrap(err, "error connecting to new relic")
		}
	}

	configureLogger(cfg, app)

	table := programs.Default()
	if cfg.ProgramsPath != "" {
		loaded, err := programs.Load(cfg.ProgramsPath)
		if err != nil {
			return nil, err
		}
		table = table.Merge(loaded)
	}

	client := opts.client
	if client == nil {
		var clientOpts []solana.Option
		if cfg.RPCRateLimit > 0 {
			clientOpts = append(clientOpts, solana.WithRateLimiter(rate.NewLocalRateLimiter(xrate.Limit(cfg.RPCRateLimit))))
		}
		client = solana.New(cfg.RPCEndpoint, clientOpts...)
	}

	return &environment{
		log:        logrus.StandardLogger().WithField("type", "cli"),
		config:     cfg,
		commitment: commitment,
		app:        app,
		client:     client,
		submitter:  transfer.NewSubmitter(client, commitment, cfg.ConfirmTimeout),
		programs:   table,
	}, nil
}

func configureLogger(cfg *config.Config, app *newrelic.Application) {
	formatter := &logrus.TextFormatter{FullTimestamp: true}
	if app != nil {
		logrus.SetFormatter(metrics.NewLogFormatter(app, formatter))
	} else {
		logrus.SetFormatter(formatter)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", cfg.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	// stdout carries command output.
	logrus.SetOutput(os.Stderr)
}

// keypair loads the configured wallet.
func (e *environment) keypair() (*wallet.Keypair, error) {
	return wallet.Load(e.config.KeypairPath)
}

func (e *environment) close() {
	if e.app != nil {
		e.app.Shutdown(metricsShutdownTimeout)
	}
}

// run loads the environment and invokes fn inside a metrics transaction
// named after the command.
func run(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, env *environment) error) error {
	env, err := loadEnvironment(cmd, opts)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, end := metrics.StartTransaction(cmd.Context(), env.app, cmd.CommandPath())
	defer end()

	err = fn(ctx, env)
	if err != nil {
		env.log.WithError(err).WithField("command", cmd.CommandPath()).Debug("command failed")
	}
	return err
}
