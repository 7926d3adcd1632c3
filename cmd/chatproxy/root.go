package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "chatproxy",
		Short: "Chat relay gateway in front of bot webhooks",
		Long: `chatproxy receives chat messages from the browser widget, validates and
rate limits them per client and session, and relays them to the webhook of
the bot named in the X-Bot-ID header.

Configuration comes from environment variables (optionally loaded from .env)
and an optional config file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")

	root.AddCommand(newServeCmd(&cfgFile))
	root.AddCommand(newBotsCmd(&cfgFile))
	return root
}
