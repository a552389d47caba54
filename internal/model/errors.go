package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel categories for provider failures. Callers match with errors.Is.
var (
	ErrAuth           = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrContextTooLong = errors.New("context too long")
	ErrConnection     = errors.New("connection error")
)

// ClassifyError wraps common provider transport errors in one of the
// sentinel categories above. Unrecognized errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case containsAny(errStr, "401", "403", "unauthorized", "invalid api key", "api key", "forbidden"):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case containsAny(errStr, "429", "rate limit", "quota", "too many requests"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case containsAny(errStr, "context length", "too many tokens", "max tokens", "token limit"):
		return fmt.Errorf("%w: %w", ErrContextTooLong, err)
	case containsAny(errStr, "connection", "eof", "timeout", "deadline", "dial", "refused"):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
