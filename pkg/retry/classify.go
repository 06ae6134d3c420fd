package retry

import (
	"context"
	"errors"
	"strings"
)

// Class groups gateway errors for diagnostics and retry decisions.
type Class string

const (
	ClassNone      Class = "none"
	ClassTransient Class = "transient"
	ClassAuth      Class = "auth"
	ClassPermanent Class = "permanent"
)

//nolint:gochecknoglobals // fixed heuristic tables
var (
	authMarkers = []string{
		"401", "403", "authentication", "unauthorized", "bad credentials",
		"permission denied", "gh auth login", "forbidden",
	}
	transientMarkers = []string{
		"timeout", "timed out", "connection", "network", "temporary",
		"rate limit", "429", "500", "502", "503", "504",
		"could not resolve host", "eof", "tls handshake",
	}
)

// Classify inspects err's message and maps it to a Class. Cancellation is
// permanent: the caller asked to stop.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassPermanent
	}

	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return ClassAuth
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return ClassTransient
		}
	}
	return ClassPermanent
}
