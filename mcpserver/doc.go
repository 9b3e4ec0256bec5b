// Package mcpserver provides the Model Context Protocol (MCP) server
// implementation.
//
// The mcpserver package exposes the execution-and-translation core as MCP
// tools: execute_code (policy validation, optional translation pre-step,
// sandboxed execution, optional session accounting), translate_code,
// open_session, and close_session. It uses the mark3labs/mcp-go library to
// handle the protocol details.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
package mcpserver
