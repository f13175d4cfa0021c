// Package main provides the flowlogic-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	flmcp "github.com/ormasoftchile/flowlogic/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	s := flmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
