// Package client implements the consumer side of the delivery
// subsystem: one long-poll loop per subscribed column with exponential
// backoff, item dedup and watermark advancement, plus a lifecycle
// manager that starts, pauses, resumes and tears down the loops.
package client
