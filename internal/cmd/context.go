package cmd

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fisherman-publications/fisherman/internal/api"
	"github.com/fisherman-publications/fisherman/internal/config"
	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/google"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/metrics"
	"github.com/fisherman-publications/fisherman/internal/session"
	"github.com/fisherman-publications/fisherman/internal/tui"
	"github.com/fisherman-publications/fisherman/internal/version"
)

const (
	// envFile is read from the working directory when present
	envFile = ".env"

	retryInterval = 200 * time.Millisecond

	// annotationNoSetup marks commands that run without config or session
	annotationNoSetup = "fisherman/no-setup"
)

// Prompter collects input interactively
type Prompter interface {
	Credentials(email string) (tui.Credentials, error)
	String(p tui.Prompt) (string, error)
}

type huhPrompter struct{}

func (huhPrompter) Credentials(email string) (tui.Credentials, error) {
	return tui.PromptForCredentials(email)
}

func (huhPrompter) String(p tui.Prompt) (string, error) {
	return tui.PromptForString(p)
}

// CommandContext holds the persistent flags and the dependencies wired from
// them. Each command tree gets its own, so tests never share state.
type CommandContext struct {
	// Persistent flags
	ConfigPath  string
	APIURL      string
	LogLevel    string
	LogFormat   string
	StorePath   string
	Ephemeral   bool
	MetricsAddr string

	// Prompter and Interactive decide how missing input is collected
	Prompter     Prompter
	Interactive  func() bool
	NewExchanger func(cfg config.GoogleConfig) (*google.Exchanger, error)

	// Set by Setup
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Client  *api.Client
	Storage credstore.Storage
	Session *session.Store
}

// NewCommandContext returns a context that prompts with huh when stdin is a terminal
func NewCommandContext() *CommandContext {
	return &CommandContext{
		Prompter:    huhPrompter{},
		Interactive: tui.ShouldPrompt,
		NewExchanger: func(cfg config.GoogleConfig) (*google.Exchanger, error) {
			return google.NewExchanger(google.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURL,
			})
		},
	}
}

func (cc *CommandContext) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cc.ConfigPath, "config", "", "config file (default is $HOME/.fisherman/config.yaml)")
	flags.StringVar(&cc.APIURL, "api-url", "", "backend base URL, e.g. https://fisherman.example.com/api")
	flags.StringVar(&cc.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&cc.LogFormat, "log-format", "", "log format (text, json)")
	flags.StringVar(&cc.StorePath, "store", "", "credential file (default is $HOME/.fisherman/credentials.json)")
	flags.BoolVar(&cc.Ephemeral, "ephemeral", false, "keep credentials in memory only")
	flags.StringVar(&cc.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

// Setup loads the configuration, applies flag overrides and wires the
// client, credential store and session store.
func (cc *CommandContext) Setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cc.ConfigPath, envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = cc.APIURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = cc.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = cc.LogFormat
	}
	if flags.Changed("store") {
		cfg.Store.Path = cc.StorePath
	}
	if flags.Changed("ephemeral") {
		cfg.Store.Ephemeral = cc.Ephemeral
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = cc.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cc.Config = cfg

	cc.Logger = log.New(log.ConfigFor(cfg.Log.Level, cfg.Log.Format))
	log.SetDefaultLogger(cc.Logger)

	reg, m := metrics.NewRegistry()
	cc.Metrics = m
	if cfg.MetricsAddr != "" {
		cc.serveMetrics(cmd.Context(), cfg.MetricsAddr, reg)
	}

	opts := []api.Option{
		api.WithTimeout(cfg.Timeout),
		api.WithRetry(cfg.Retries, retryInterval),
		api.WithLogger(cc.Logger),
		api.WithMetrics(m),
		api.WithUserAgent(version.GetInfo().UserAgent()),
	}
	if cfg.ValidateResponses {
		v, err := api.NewValidator()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithValidator(v))
	}
	cc.Client = api.NewClient(cfg.APIURL, opts...)

	if cfg.Store.Ephemeral {
		cc.Storage = credstore.NewMemoryStore()
	} else {
		passphrase := cfg.Store.Passphrase
		if passphrase == "" {
			passphrase = credstore.DefaultPassphrase
		}
		cc.Storage = credstore.NewFileStore(cfg.Store.Path, passphrase)
	}

	cc.Session = session.New(cc.Client, cc.Storage,
		session.WithLogger(cc.Logger),
		session.WithMetrics(m),
	)
	cc.Client.SetTokenSource(cc.Session)
	cc.Client.SetUnauthorizedHandler(cc.Session.HandleUnauthorized)

	cc.Logger.Debug("client configured",
		"api_url", cfg.APIURL,
		"store", cfg.Store.Path,
		"ephemeral", cfg.Store.Ephemeral,
	)
	return nil
}

func (cc *CommandContext) serveMetrics(ctx context.Context, addr string, reg prometheus.Gatherer) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			cc.Logger.WithError(err).Warn("metrics endpoint stopped", "addr", addr)
		}
	}()
}
