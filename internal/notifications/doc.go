// Package notifications posts catalog events to a chat webhook.
//
// The default implementation targets a Discord webhook configured in
// config.toml (or DISCORD_WEBHOOK_URL) and degrades to a no-op when none is
// set. Callers publish an Event with a Payload; formatting into embeds, link
// rows, and file uploads stays inside this package.
package notifications
