package main

import (
	"fmt"

	"github.com/m4xw311/mcpchat/agent/web"
	"github.com/m4xw311/mcpchat/mcpagent"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	addr      string
	mcpConfig string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat UI",
		Long: `Serve the chat UI over HTTP. Every browser gets its own agent session;
all sessions are closed when the server stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			if cmd.Flags().Changed("addr") {
				cfg.Web.Addr = f.addr
			}
			if cmd.Flags().Changed("mcp-config") {
				cfg.MCPConfig = f.mcpConfig
			}

			srv := web.New(web.Options{
				Title:       cfg.Web.Title,
				Build:       mcpagent.NewBuilder(cfg, logger.Logger),
				TurnTimeout: cfg.TurnTimeout,
				IdleTimeout: cfg.Web.IdleTimeout,
				MaxSessions: cfg.Web.MaxSessions,
				Logger:      logger.Logger,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", cfg.Web.Title, displayAddr(cfg.Web.Addr))
			return srv.ListenAndServe(cmd.Context(), cfg.Web.Addr)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default from config, :8501)")
	cmd.Flags().StringVar(&f.mcpConfig, "mcp-config", "", "MCP servers file (default: no servers)")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
