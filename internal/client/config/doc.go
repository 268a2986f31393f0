// Package config loads runtime configuration for the gophauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables GOPHAUTH_CLI_ADDR and GOPHAUTH_CLI_TIMEOUT.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the gophauth gRPC endpoint
//	-t duration   per-call timeout, e.g. "5s"
//
// Everything after the flags is returned to the caller as the command line.
package config
