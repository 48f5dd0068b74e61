package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgefn/routeprobe/internal/config"
	"github.com/edgefn/routeprobe/pkg/credential"
)

type keygenOptions struct {
	label      string
	ttlSeconds int64
	expiresAt  string
	scopes     []string
	asJSON     bool
}

func newKeygenCmd() *cobra.Command {
	var opts keygenOptions
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Mint an API key from the issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runKeygen(cmd, cfg, opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.label, "label", "", "key label (default ISSUER_KEY_LABEL)")
	fs.Int64Var(&opts.ttlSeconds, "ttl-seconds", 0, "key lifetime in seconds")
	fs.StringVar(&opts.expiresAt, "expires-at", "", "absolute expiry, unix seconds or RFC3339")
	fs.StringArrayVar(&opts.scopes, "scope", nil, "key scope, repeatable (default chat)")
	fs.BoolVar(&opts.asJSON, "json", false, "print the issued key as JSON")
	return cmd
}

func runKeygen(cmd *cobra.Command, cfg *config.Config, opts keygenOptions) error {
	in := credential.MintInput{
		Label:  strings.TrimSpace(opts.label),
		Scopes: opts.scopes,
	}
	if in.Label == "" {
		in.Label = cfg.Issuer.KeyLabel
	}
	if opts.ttlSeconds > 0 {
		in.TTL = time.Duration(opts.ttlSeconds) * time.Second
	} else {
		in.TTL = cfg.Issuer.KeyTTL
	}
	if raw := strings.TrimSpace(opts.expiresAt); raw != "" {
		expires, err := parseExpiry(raw)
		if err != nil {
			return err
		}
		in.ExpiresAt = expires
	}

	p := &credential.Provider{
		IssuerURL: cfg.Issuer.URL,
		Timeout:   cfg.RequestTimeout,
	}
	key, err := p.Mint(cmd.Context(), in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		data, err := json.MarshalIndent(key, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "id:         %s\n", key.ID)
	fmt.Fprintf(out, "label:      %s\n", key.Label)
	fmt.Fprintf(out, "scopes:     %s\n", strings.Join(key.Scopes, ", "))
	if key.ExpiresAt > 0 {
		fmt.Fprintf(out, "expires at: %s\n", time.Unix(key.ExpiresAt, 0).Format(time.RFC3339))
	}
	fmt.Fprintf(out, "token:      %s\n", key.Token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Store this token securely; it will not be shown again.")
	return nil
}

// parseExpiry accepts unix seconds or an RFC3339 timestamp.
func parseExpiry(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --expires-at %q: want unix seconds or RFC3339", raw)
	}
	return t.Unix(), nil
}
