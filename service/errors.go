package service

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingResource is returned when a local input such as the query file does not exist.
	ErrMissingResource = errors.New("missing resource")

	// ErrAuthentication is returned when the service account key is unusable or
	// a remote service rejects the identity.
	ErrAuthentication = errors.New("authentication error")
)

// classifyAuth marks err with ErrAuthentication when it carries a token
// exchange failure or an HTTP 401 from a Google API.
func classifyAuth(err error) error {
	if err == nil || errors.Is(err, ErrAuthentication) {
		return err
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return err
}
