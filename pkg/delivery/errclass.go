package delivery

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// FailureCode classifies a failed send for logging. External channels fail
// for network reasons far more often than for payload reasons, and the logs
// should say which.
type FailureCode string

const (
	FailureCanceled    FailureCode = "canceled"
	FailureTimeout     FailureCode = "timeout"
	FailureDNS         FailureCode = "dns_error"
	FailureRefused     FailureCode = "connection_refused"
	FailureReset       FailureCode = "connection_reset"
	FailureUnreachable FailureCode = "network_unreachable"
	FailureUnexpected  FailureCode = "unexpected"
)

// Classify maps a send error to a failure code, best effort. It never
// returns an empty code for a non-nil error.
func Classify(err error) FailureCode {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var dnserr *net.DNSError
	if errors.As(err, &dnserr) {
		return FailureDNS
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return FailureTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return FailureRefused
	case errors.Is(err, syscall.ECONNRESET):
		return FailureReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return FailureUnreachable
	}
	return FailureUnexpected
}

// Transient reports whether a failure is worth retrying on a later event.
func (c FailureCode) Transient() bool {
	switch c {
	case FailureTimeout, FailureDNS, FailureRefused, FailureReset, FailureUnreachable:
		return true
	}
	return false
}
