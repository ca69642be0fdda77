package main

import (
	"flag"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/facility-names/pkg/api"
)

// cmdMCP serves the MCP tools over stdio. Logs go to stderr.
func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	a := mustApp(*cfgPath, *verbose)
	defer a.Close()

	srv := server.NewMCPServer("facility-names", version, server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, api.Service{Facilities: a.store, Orchestrator: a.orch, Logger: a.logger})

	a.logger.Info("serving MCP on stdio")
	if err := server.ServeStdio(srv); err != nil {
		a.logger.Error("mcp server", "error", err)
		a.Close()
		os.Exit(1)
	}
}
