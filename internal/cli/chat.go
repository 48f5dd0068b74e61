package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgefn/routeprobe/internal/chat"
	"github.com/edgefn/routeprobe/internal/config"
)

type chatOptions struct {
	alias       string
	privacyMode string
	caps        []string
	plain       bool
}

func newChatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive routed chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(opts.alias) != "" {
				cfg.Router.Alias = strings.TrimSpace(opts.alias)
			}
			if strings.TrimSpace(opts.privacyMode) != "" {
				cfg.Router.PrivacyMode = strings.TrimSpace(opts.privacyMode)
			}
			if len(opts.caps) > 0 {
				cfg.Router.Caps = opts.caps
			}
			return chat.Run(cfg, opts.plain)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.alias, "alias", "", "routing alias (overrides ROUTER_ALIAS)")
	fs.StringVar(&opts.privacyMode, "privacy", "", "privacy mode sent with plan requests")
	fs.StringArrayVar(&opts.caps, "cap", nil, "required capability, repeatable")
	fs.BoolVar(&opts.plain, "plain", false, "line-oriented mode without the full-screen UI")
	return cmd
}
