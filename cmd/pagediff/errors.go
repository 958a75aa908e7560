package main

import (
	"context"
	"errors"
	"strings"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff/pkg/capture"
)

func isDNSError(err error) bool {
	if err == nil {
		return false
	}

	errMessage := getFullErrorMessage(err)
	return strings.Contains(errMessage, "net::ERR_NAME_NOT_RESOLVED") ||
		strings.Contains(errMessage, "no such host")
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	var ce *capture.CaptureError
	if errors.As(err, &ce) && ce.Timeout() {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMessage := getFullErrorMessage(err)
	return strings.Contains(errMessage, "context deadline exceeded") ||
		strings.Contains(errMessage, "timeout")
}

func getFullErrorMessage(err error) string {
	var sb strings.Builder
	for err != nil {
		sb.WriteString(err.Error())
		err = errors.Unwrap(err)
		if err != nil {
			sb.WriteString(" | ")
		}
	}
	return sb.String()
}

func unwrapError(err error) string {
	rootErr := err
	for {
		unwrappedErr := errors.Unwrap(rootErr)
		if unwrappedErr == nil {
			break
		}
		rootErr = unwrappedErr
	}
	return rootErr.Error()
}

func handleCaptureError(target string, err error) {
	switch {
	case errors.Is(err, capture.ErrNameCollision):
		log.Warnf("Skipped %s: %v", target, err)
	case isDNSError(err):
		log.Warnf("DNS lookup failed for %s", target)
	case isTimeoutError(err):
		log.Warnf("Timeout occurred while capturing %s", target)
	default:
		log.Warnf("Error capturing %s: %s", target, unwrapError(err))
	}
}
