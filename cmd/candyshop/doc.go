// Package main hosts the candyshop CLI entrypoint and command graph.
//
// Each command resolves configuration once through the shared command
// context, builds the collaborators it needs (catalog store, pull request
// source, ledger, webhook notifier) and hands off to the internal packages.
// Commands that produce machine-readable output accept --json.
package main
