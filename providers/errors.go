package providers

import (
	"errors"
	"fmt"

	"pet-sync/models"
)

// ErrPageLimit signalisiert, dass ein Upstream mehr Seiten meldet als erlaubt.
var ErrPageLimit = errors.New("page limit exceeded")

// TransportError kapselt Netzwerk- und Client-Fehler beim Upstream-Aufruf.
type TransportError struct {
	Source models.Source
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError ist eine Vertragsverletzung des Upstreams (Status, Erfolgs-Flag, leere Liste, Seitenlimit).
type UpstreamError struct {
	Source     models.Source
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: upstream contract violated: %s", e.Source, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RecordParseError beschreibt einen einzelnen fehlerhaften Datensatz. Er bricht den Lauf nicht ab.
type RecordParseError struct {
	Source   models.Source
	RecordID string
	Payload  []byte
	Err      error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("%s: record %q: %v", e.Source, e.RecordID, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }
