package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProbe marks a malformed probe record.
var ErrInvalidProbe = errors.New("invalid probe")

// ErrorKind enumerates why a probe failed.
type ErrorKind string

const (
	ErrorKindNone                   ErrorKind = ""
	ErrorKindTimeout                ErrorKind = "timeout"
	ErrorKindDestinationUnreachable ErrorKind = "destination-unreachable"
	ErrorKindNetworkDown            ErrorKind = "network-down"
	ErrorKindPacketTooBig           ErrorKind = "packet-too-big"
	ErrorKindParameterProblem       ErrorKind = "parameter-problem"
	ErrorKindRedirectReceived       ErrorKind = "redirect-received"
	ErrorKindSourceQuench           ErrorKind = "source-quench"
	ErrorKindTTLExceeded            ErrorKind = "ttl-exceeded"
	ErrorKindUnknown                ErrorKind = "unknown"
)

// Valid reports whether k is one of the known kinds (or empty).
func (k ErrorKind) Valid() bool {
	switch k {
	case ErrorKindNone, ErrorKindTimeout, ErrorKindDestinationUnreachable, ErrorKindNetworkDown,
		ErrorKindPacketTooBig, ErrorKindParameterProblem, ErrorKindRedirectReceived,
		ErrorKindSourceQuench, ErrorKindTTLExceeded, ErrorKindUnknown:
		return true
	}
	return false
}

// ProbeResult is one attempt to reach one target. Values are never mutated after creation.
type ProbeResult struct {
	TargetAddress     string     `json:"targetAddress"`
	SequenceNumber    int64      `json:"sequenceNumber"`
	TimeRequested     time.Time  `json:"timeRequested"`
	TimeReceived      *time.Time `json:"timeReceived,omitempty"`
	RoundTripTimeMs   *float64   `json:"roundTripTimeMs,omitempty"`
	ResponseSizeBytes *int       `json:"responseSizeBytes,omitempty"`
	TTLHops           *int       `json:"ttlHops,omitempty"`
	Failed            bool       `json:"failed"`
	ErrorKind         ErrorKind  `json:"errorKind,omitempty"`
}

// Time returns the moment the probe is placed at on the timeline: the response time when one
// arrived, otherwise the request time.
func (p ProbeResult) Time() time.Time {
	if p.TimeReceived != nil {
		return *p.TimeReceived
	}
	return p.TimeRequested
}

// Validate checks identity fields and that success and failure fields agree.
func (p ProbeResult) Validate() error {
	if p.TargetAddress == "" {
		return fmt.Errorf("%w: target address is required", ErrInvalidProbe)
	}
	if p.SequenceNumber < 0 {
		return fmt.Errorf("%w: negative sequence number %d", ErrInvalidProbe, p.SequenceNumber)
	}
	if p.TimeRequested.IsZero() {
		return fmt.Errorf("%w: %s#%d has no request time", ErrInvalidProbe, p.TargetAddress, p.SequenceNumber)
	}
	if p.TimeReceived != nil && p.TimeReceived.Before(p.TimeRequested) {
		return fmt.Errorf("%w: %s#%d received before it was requested", ErrInvalidProbe, p.TargetAddress, p.SequenceNumber)
	}
	if !p.ErrorKind.Valid() {
		return fmt.Errorf("%w: unknown error kind %q", ErrInvalidProbe, p.ErrorKind)
	}
	failure := p.Failed || p.ErrorKind != ErrorKindNone
	if failure && p.RoundTripTimeMs != nil {
		return fmt.Errorf("%w: %s#%d carries both round-trip data and a failure", ErrInvalidProbe, p.TargetAddress, p.SequenceNumber)
	}
	if p.Failed && p.ErrorKind == ErrorKindNone {
		return fmt.Errorf("%w: %s#%d failed without an error kind", ErrInvalidProbe, p.TargetAddress, p.SequenceNumber)
	}
	if p.RoundTripTimeMs != nil && *p.RoundTripTimeMs < 0 {
		return fmt.Errorf("%w: %s#%d negative round-trip time", ErrInvalidProbe, p.TargetAddress, p.SequenceNumber)
	}
	return nil
}

// Success builds a successful probe result.
func Success(target string, seq int64, requested time.Time, rtt time.Duration) ProbeResult {
	received := requested.Add(rtt)
	ms := float64(rtt) / float64(time.Millisecond)
	return ProbeResult{
		TargetAddress:   target,
		SequenceNumber:  seq,
		TimeRequested:   requested,
		TimeReceived:    &received,
		RoundTripTimeMs: &ms,
	}
}

// Failure builds a failed probe result. received may be nil when nothing came back.
func Failure(target string, seq int64, requested time.Time, received *time.Time, kind ErrorKind) ProbeResult {
	if kind == ErrorKindNone {
		kind = ErrorKindUnknown
	}
	return ProbeResult{
		TargetAddress:  target,
		SequenceNumber: seq,
		TimeRequested:  requested,
		TimeReceived:   received,
		Failed:         true,
		ErrorKind:      kind,
	}
}
