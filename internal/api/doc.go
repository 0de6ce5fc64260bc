// Package api exposes the REST surface of the agent: turn submission and
// lookup, the action catalogue, the configured chains and, when enabled, the
// MCP streamable HTTP transport.
package api
