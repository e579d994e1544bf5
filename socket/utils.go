package socket

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

func generateID() string {
	return uuid.NewString()
}

// WebSocketURL turns a page style base URL and endpoint path into the socket
// address, picking wss for https and ws for http, and attaches the bearer
// token as the "token" query parameter.
func WebSocketURL(base, endpoint, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}

	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	u.Path = ref.Path
	q := ref.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}
