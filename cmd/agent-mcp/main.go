package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/mcp"
)

const version = "v1.0.0"

// agent-mcp exposes the agent daemon's HTTP API as MCP tools over stdio.
// stdout carries the protocol, so all logging goes to stderr.
func main() {
	_ = godotenv.Load()

	logging.Init(logging.Config{
		Level:  envString("LOG_LEVEL", "info"),
		Format: envString("LOG_FORMAT", "json"),
		Output: os.Stderr,
	})

	apiURL := envString("AGENT_API_URL", "http://127.0.0.1:3000")
	handler := mcp.NewHandler(mcp.NewClient(apiURL))
	server := mcp.NewServer(handler, version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info().Str("api", apiURL).Msg("[MCP] Serving tools on stdio")
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("[MCP] Server stopped")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
