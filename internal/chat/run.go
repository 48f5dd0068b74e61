package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/edgefn/routeprobe/internal/config"
	"github.com/edgefn/routeprobe/pkg/credential"
	"github.com/edgefn/routeprobe/pkg/extract"
	"github.com/edgefn/routeprobe/pkg/invoke"
	"github.com/edgefn/routeprobe/pkg/plan"
	"github.com/edgefn/routeprobe/pkg/usage"
)

// NewSession assembles the per-turn pipeline from configuration.
func NewSession(cfg *config.Config, prices *usage.Source) *Session {
	creds := &credential.Provider{
		IssuerURL:    cfg.Issuer.URL,
		Timeout:      cfg.RequestTimeout,
		AutoGenerate: cfg.Issuer.AutoKey,
		Label:        cfg.Issuer.KeyLabel,
		TTL:          cfg.Issuer.KeyTTL,
	}
	return &Session{
		Plans: &plan.Client{
			BaseURL: cfg.Router.URL,
			Timeout: cfg.RequestTimeout,
		},
		Invoker: &invoke.Invoker{
			Credentials:     creds,
			Timeout:         cfg.RequestTimeout,
			BaseURLOverride: config.UpstreamBaseURL(),
		},
		Extractor:   &extract.Extractor{Dumper: &extract.FileDumper{Dir: cfg.DumpDir}},
		Prices:      prices,
		Alias:       cfg.Router.Alias,
		PrivacyMode: cfg.Router.PrivacyMode,
		Caps:        cfg.Router.Caps,
	}
}

// Run starts the interactive session: the full-screen UI on a terminal, the
// line-oriented loop when forced or when stdin is not one. Price reloads keep
// running until the session ends; ctrl+c tears everything down cleanly.
func Run(cfg *config.Config, forcePlain bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Release the registration after the first signal so a second ctrl+c
	// falls back to the default disposition instead of being swallowed.
	go func() {
		<-ctx.Done()
		stop()
	}()

	prices, err := usage.NewSource(cfg.Pricing.File)
	if err != nil {
		return fmt.Errorf("load price table: %w", err)
	}
	if cfg.Pricing.File != "" {
		go func() { _ = prices.Watch(ctx) }()
	}

	session := NewSession(cfg, prices)

	if forcePlain || !isatty.IsTerminal(os.Stdin.Fd()) {
		return RunPlain(ctx, session, os.Stdin, os.Stdout)
	}

	p := tea.NewProgram(newTUIModel(ctx, session), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
