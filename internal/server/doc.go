// Package server exposes the HTTP surface of the delivery subsystem:
// the long-poll endpoint consumed by column clients, the publish
// endpoint fed by the ingestion pipeline, and the usual health and
// metrics routes.
package server
