// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3320)
  - DatabaseURL: SQLite path or PostgreSQL connection string (required)
  - DatabaseType: "sqlite" (default) or "postgres"
  - AdminKeySalt: Secret for the operator key HMAC (required)
  - AccountKeySalt: Secret for account spending keys (required)

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type
	-admin-salt   Operator key salt
	-account-salt Account key salt

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	ADMIN_KEY_SALT   → -admin-salt
	ACCOUNT_KEY_SALT → -account-salt

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing or if the
database type is not one of the two supported engines.
*/
package cliparse
