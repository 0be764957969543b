package http

import (
	"fmt"
	"net/http"
	"strings"
)

type AuthType string

const (
	AuthTypeNone         AuthType = "none"
	AuthTypeBearer       AuthType = "bearer"
	AuthTypeBasic        AuthType = "basic"
	AuthTypeAPIKey       AuthType = "api-key"
	AuthTypeCustomHeader AuthType = "custom-header"
)

// AuthConfig describes how outbound requests are authenticated. For api-key
// auth, In selects "header" (default) or "query" and Key names the header or
// query parameter.
type AuthConfig struct {
	Type     AuthType          `json:"type"`
	Token    string            `json:"token"`
	Username string            `json:"username"`
	Password string            `json:"password"`
	Key      string            `json:"key"`
	Value    string            `json:"value"`
	In       string            `json:"in"`
	Headers  map[string]string `json:"headers"`
}

// NewAuthTransport wraps base with the round tripper matching auth.Type.
func NewAuthTransport(auth AuthConfig, base http.RoundTripper) (http.RoundTripper, error) {
	if base == nil {
		base = http.DefaultTransport
	}

	switch AuthType(strings.ToLower(string(auth.Type))) {
	case "", AuthTypeNone:
		return base, nil

	case AuthTypeBearer:
		if auth.Token == "" {
			return nil, fmt.Errorf("bearer auth requires a token")
		}
		return &bearerAuthTransport{token: auth.Token, base: base}, nil

	case AuthTypeBasic:
		return &basicAuthTransport{username: auth.Username, password: auth.Password, base: base}, nil

	case AuthTypeAPIKey:
		key := auth.Key
		value := auth.Value
		if value == "" {
			value = auth.Token
		}

		if strings.EqualFold(auth.In, "query") {
			if key == "" {
				key = "api_key"
			}
			return &queryAuthTransport{key: key, value: value, base: base}, nil
		}

		if key == "" {
			key = "X-API-Key"
		}
		return &headerAuthTransport{headers: map[string]string{key: value}, base: base}, nil

	case AuthTypeCustomHeader:
		headers := map[string]string{}
		for key, value := range auth.Headers {
			headers[key] = value
		}
		if auth.Key != "" {
			headers[auth.Key] = auth.Value
		}
		if len(headers) == 0 {
			return nil, fmt.Errorf("custom-header auth requires at least one header")
		}
		return &headerAuthTransport{headers: headers, base: base}, nil

	default:
		return nil, fmt.Errorf("invalid auth type: %s", auth.Type)
	}
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

type bearerAuthTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

type queryAuthTransport struct {
	key   string
	value string
	base  http.RoundTripper
}

func (t *queryAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set(t.key, t.value)
	req.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(req)
}

type headerAuthTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	return t.base.RoundTrip(req)
}
