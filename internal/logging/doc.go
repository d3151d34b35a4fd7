// Package logging configures slog handlers and shared attribute helpers
// for the fieldtag daemon and CLI.
package logging
