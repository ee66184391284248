// Package domain holds the core types and interfaces of the update
// delivery subsystem: items, column updates, and the contracts between
// the ingestion side, the broker, and the consuming client.
package domain
