package domain

import "errors"

var (
	// ErrRateLimited indicates an externally imposed quota was hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrSourceUnavailable indicates the item source could not be reached.
	ErrSourceUnavailable = errors.New("item source unavailable")

	// ErrServiceUnavailable indicates the classification service could not be reached.
	ErrServiceUnavailable = errors.New("classification service unavailable")

	// ErrStoreUnavailable indicates the persistent store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedVerdict indicates the classification service returned a
	// response missing required fields. Treated as transient, not fatal.
	ErrMalformedVerdict = errors.New("malformed classification response")

	// ErrNoWatchedAccounts indicates the watched-account list is empty or
	// unavailable. This is the only run-aborting condition.
	ErrNoWatchedAccounts = errors.New("no watched accounts")
)

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether err is a retryable collaborator failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrMalformedVerdict)
}
