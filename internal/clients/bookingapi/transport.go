package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/merridale/bookline/internal/auth"
)

// authTransport injects the bearer token and transparently recovers from a
// single 401 by refreshing the access token and replaying the request once.
// Concurrent 401s share one refresh call; a failed refresh clears the stored
// credentials so the next call surfaces *AuthError immediately.
type authTransport struct {
	base    http.RoundTripper
	session *auth.Session
	baseURL string
	refresh singleflight.Group
}

func newAuthTransport(base http.RoundTripper, session *auth.Session, baseURL string) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{base: base, session: session, baseURL: strings.TrimRight(baseURL, "/")}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isAuthPath(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	token := t.session.AccessToken()
	if token == "" {
		return nil, &AuthError{Reason: "no access token"}
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	fresh, err := t.refreshAccess(req.Context(), token)
	if err != nil {
		t.session.Clear()
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)
	return t.base.RoundTrip(retry)
}

// refreshAccess exchanges the refresh token for a new access token. stale is
// the access token the caller just saw rejected. The singleflight group
// collapses a burst of 401s into one round trip, and callers arriving after
// a refresh already landed get the new token without another call.
func (t *authTransport) refreshAccess(ctx context.Context, stale string) (string, error) {
	token, err, _ := t.refresh.Do("refresh", func() (any, error) {
		if cur := t.session.AccessToken(); cur != "" && cur != stale {
			return cur, nil
		}
		rt := t.session.RefreshToken()
		if rt == "" {
			return "", &AuthError{Reason: "no refresh token"}
		}

		payload, err := json.Marshal(refreshRequest{Refresh: rt})
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/auth/token/refresh/", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return "", fmt.Errorf("refresh token: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return "", &AuthError{Reason: fmt.Sprintf("refresh rejected with status %d", resp.StatusCode)}
		}

		var out refreshResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode refresh response: %w", err)
		}
		if out.Access == "" {
			return "", &AuthError{Reason: "refresh returned empty access token"}
		}
		if err := t.session.SetAccess(out.Access); err != nil {
			return "", fmt.Errorf("persist access token: %w", err)
		}
		return out.Access, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func isAuthPath(path string) bool {
	return strings.Contains(path, "/auth/")
}
