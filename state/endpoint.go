package state

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	ErrEndpointScheme  = errors.New("endpoint must not include a scheme")
	ErrEndpointInvalid = errors.New("endpoint is not a valid host")
	ErrEndpointPath    = errors.New("endpoint must not include a path")
)

// ResolveEndpoint turns a custom user pool endpoint such as
// "auth.example.com" or "localhost:9229" into the https base URL handed to
// the service client. Schemes, paths, queries and fragments are rejected.
func ResolveEndpoint(endpoint string) (string, error) {
	if strings.Contains(endpoint, "://") {
		return "", fmt.Errorf("%w: %q", ErrEndpointScheme, endpoint)
	}
	u, err := url.Parse("https://" + endpoint)
	if err != nil || u.Hostname() == "" || u.User != nil {
		return "", fmt.Errorf("%w: %q", ErrEndpointInvalid, endpoint)
	}
	if err := validation.Validate(u.Hostname(), is.Host); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrEndpointInvalid, endpoint, err)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", fmt.Errorf("%w: %q", ErrEndpointPath, endpoint)
	}
	return "https://" + u.Host, nil
}

// EndpointURL resolves Endpoint. It returns "" when no endpoint is set.
func (c UserPoolConfiguration) EndpointURL() (string, error) {
	if c.Endpoint == "" {
		return "", nil
	}
	return ResolveEndpoint(c.Endpoint)
}
