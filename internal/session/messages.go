package session

import (
	"errors"
	"fmt"

	"github.com/hammamikhairi/vicvoix/internal/domain"
)

// User-visible messages. Keep them short; they show up as one-line toasts.

func msgVoicesLoaded(n int, locale string) string {
	if n == 0 {
		return fmt.Sprintf("No %s voices available.", locale)
	}
	return fmt.Sprintf("%d %s voices loaded.", n, locale)
}

func msgNeedText() string {
	return "Enter some text first."
}

func msgNeedVoice() string {
	return "Load and select a voice first."
}

func msgSaved(path string, n int) string {
	return fmt.Sprintf("MP3 saved to %s (%d bytes).", path, n)
}

func msgSaveCancelled() string {
	return "Save cancelled."
}

// msgFailure describes err for the user, prefixed by what was attempted.
func msgFailure(action string, err error) string {
	var apiErr *domain.APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s: service error (HTTP %d).", action, apiErr.StatusCode)
	case errors.Is(err, domain.ErrNetwork):
		return fmt.Sprintf("%s: network error.", action)
	case errors.Is(err, domain.ErrParse), errors.Is(err, domain.ErrDecode):
		return fmt.Sprintf("%s: unexpected response from the service.", action)
	case errors.Is(err, domain.ErrPermission):
		return fmt.Sprintf("%s: storage permission denied.", action)
	case errors.Is(err, domain.ErrIO):
		return fmt.Sprintf("%s: could not write the file.", action)
	case errors.Is(err, domain.ErrPlayback):
		return fmt.Sprintf("%s: audio could not be played.", action)
	default:
		return fmt.Sprintf("%s: %v.", action, err)
	}
}
