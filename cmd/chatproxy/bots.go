package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"chatbot-gateway/config"
)

func newBotsCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List configured bots and their webhook hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			renderBots(cmd.OutOrStdout(), cfg.Registry)
			return nil
		},
	}
}

// renderBots mostra só o host do webhook; o path costuma carregar o segredo.
func renderBots(w io.Writer, reg config.BotRegistry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Bot ID", "Configured", "Webhook host", "Env"})

	configured := 0
	for _, id := range reg.IDs() {
		hook, _ := reg.Lookup(id)
		host := "-"
		ok := "no"
		if hook != "" {
			ok = "yes"
			configured++
			if u, err := url.Parse(hook); err == nil {
				host = u.Host
			}
		}
		t.AppendRow(table.Row{id, ok, host, config.WebhookEnvKey(id)})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d", configured, reg.Len()), "", ""})
	t.Render()
}
