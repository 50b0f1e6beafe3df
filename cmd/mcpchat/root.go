package main

import (
	"github.com/m4xw311/mcpchat/config"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/logging"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "mcpchat",
		Short: "Chat with an LLM agent that uses MCP tools",
		Long: `mcpchat runs a conversational agent backed by an LLM (Groq by default)
and the tools of any MCP servers you configure. Use "chat" for a console
session or "serve" for the web UI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (layered over ~/.mcpchat/config.yaml and ./.mcpchat/config.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file with provider credentials")

	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	root.AddCommand(newChatCmd(g), newServeCmd(g))
	return root
}

// setup loads the environment and configuration and builds the logger.
func (g *globalFlags) setup() (*config.Config, *logging.Logger, error) {
	if err := config.LoadEnv(g.envFile); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(g.configFile)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error loading configuration")
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
