// Package notifications delivers push notifications about ingestion runs
// and daemon errors via ntfy. When no topic is configured the service is a
// noop, so callers never need to nil-check.
package notifications
