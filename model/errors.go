package model

import "fmt"

// AuthError is fatal: bad credentials or a token that could not be
// refreshed. The run halts before producing output.
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%s): %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DiscoveryError is fatal: no chapter list could be produced by any
// strategy.
type DiscoveryError struct {
	Stage string
	Err   error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chapter discovery failed (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("chapter discovery failed (%s): no chapters found", e.Stage)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// FetchError marks a single chapter that could not be fetched. It is
// logged and the run continues with the next chapter.
type FetchError struct {
	Index int
	Title string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch chapter %d %q: %v", e.Index, e.Title, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedInputError reports an unreadable or invalid local input file,
// such as a cookie file or the persisted session store.
type MalformedInputError struct {
	Path string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// RateLimitError is retryable: the HTTP layer waits and retries a bounded
// number of times before degrading it to a per-chapter FetchError.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
