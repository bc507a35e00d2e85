// Package config loads, normalizes, and validates candyshop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GITHUB_TOKEN, DISCORD_WEBHOOK_URL, and CANDYSHOP_REPO. The Config type is
// built once per process and handed to the ingest, prune, and pack commands so
// the content tree layout, public URL base, and collaborator timeouts are
// resolved in one place.
package config
