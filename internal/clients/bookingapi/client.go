package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/merridale/bookline/internal/auth"
	"github.com/merridale/bookline/internal/domain"
)

// Client talks to the booking backend. All calls go through the auth
// transport, so callers never see a raw 401: either the request succeeds
// after a transparent refresh or it fails with *AuthError.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    *auth.Session
	limiter    *rate.Limiter
}

func NewClient(baseURL string, session *auth.Session) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: newAuthTransport(nil, session, base),
		},
		baseURL: base,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Login exchanges credentials for a token pair and stores it in the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", loginRequest{Username: username, Password: password}, &out); err != nil {
		return err
	}
	if out.Access == "" || out.Refresh == "" {
		return fmt.Errorf("login response missing tokens")
	}
	return c.session.SetPair(out.Access, out.Refresh)
}

// Logout revokes the refresh token server side and clears the session either
// way; local state must not outlive a logout attempt.
func (c *Client) Logout(ctx context.Context) error {
	rt := c.session.RefreshToken()
	var apiErr error
	if rt != "" {
		apiErr = c.do(ctx, http.MethodPost, "/auth/logout/", logoutRequest{Refresh: rt}, nil)
	}
	if err := c.session.Clear(); err != nil {
		return err
	}
	return apiErr
}

// ForceRefresh refreshes the access token ahead of its expiry. Used by the
// scheduler so interactive calls rarely pay the 401 round trip.
func (c *Client) ForceRefresh(ctx context.Context) error {
	t, ok := c.httpClient.Transport.(*authTransport)
	if !ok {
		return fmt.Errorf("transport does not support refresh")
	}
	if _, err := t.refreshAccess(ctx, c.session.AccessToken()); err != nil {
		c.session.Clear()
		return err
	}
	return nil
}

func (c *Client) SearchContacts(ctx context.Context, query string) ([]domain.Contact, error) {
	var out searchContactsResponse
	path := "/accounts/search/contacts/?search=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(out.Results))
	for _, d := range out.Results {
		contacts = append(contacts, d.toDomain())
	}
	return contacts, nil
}

func (c *Client) SearchPeople(ctx context.Context, query string) ([]domain.Person, error) {
	var out searchPeopleResponse
	path := "/accounts/search/users/?search=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	people := make([]domain.Person, 0, len(out.Results))
	for _, d := range out.Results {
		people = append(people, d.toDomain())
	}
	return people, nil
}

// Book creates a single or recurring appointment. For recurring bookings the
// backend expands the series itself and returns every generated occurrence.
func (c *Client) Book(ctx context.Context, req BookRequest) ([]domain.Appointment, error) {
	var out bookResponse
	if err := c.do(ctx, http.MethodPost, "/accounts/appointments/book/", req, &out); err != nil {
		return nil, err
	}
	appts := make([]domain.Appointment, 0, len(out.Appointments))
	for _, d := range out.Appointments {
		appts = append(appts, d.toDomain())
	}
	return appts, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]domain.RecurringGroup, error) {
	var out listGroupsResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/recurring-groups/", nil, &out); err != nil {
		return nil, err
	}
	groups := make([]domain.RecurringGroup, 0, len(out.Results))
	for _, d := range out.Results {
		groups = append(groups, d.toDomain())
	}
	return groups, nil
}

// ListGroupAppointments fetches one page of a group's occurrences. The
// returned count is the authoritative total across all pages.
func (c *Client) ListGroupAppointments(ctx context.Context, groupID string, page int) ([]domain.Appointment, int, error) {
	var out groupAppointmentsResponse
	path := "/accounts/recurring-groups/" + url.PathEscape(groupID) + "/appointments/?page=" + strconv.Itoa(page)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, 0, err
	}
	appts := make([]domain.Appointment, 0, len(out.Results))
	for _, d := range out.Results {
		a := d.toDomain()
		if a.RecurringID == "" {
			a.RecurringID = groupID
		}
		appts = append(appts, a)
	}
	return appts, out.Count, nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/accounts/recurring-groups/"+url.PathEscape(groupID)+"/delete/", nil, nil)
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) (DeleteResult, error) {
	var out DeleteResult
	err := c.do(ctx, http.MethodDelete, "/accounts/appointments/"+url.PathEscape(id)+"/delete/", nil, &out)
	return out, err
}

// CalendarStats returns the full user roster with calendar bindings.
func (c *Client) CalendarStats(ctx context.Context) ([]domain.User, error) {
	var out calendarStatsResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/calendar-stats/", nil, &out); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(out.Stats.AllUsers))
	for _, d := range out.Stats.AllUsers {
		users = append(users, d.toDomain())
	}
	return users, nil
}

// UpdateUserCalendar binds or clears a user's calendar. An empty calendarID
// clears the binding. The response echoes the binding; a mismatched user id
// means the server applied the change somewhere unexpected.
func (c *Client) UpdateUserCalendar(ctx context.Context, userID, calendarID string) error {
	var out updateCalendarResponse
	path := "/accounts/users/" + url.PathEscape(userID) + "/update-calendar/"
	if err := c.do(ctx, http.MethodPost, path, updateCalendarRequest{CalendarID: calendarID}, &out); err != nil {
		return err
	}
	if got := out.UserID.String(); got != "" && got != userID {
		return fmt.Errorf("calendar update confirmed for user %s, expected %s", got, userID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	msg := ""
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else {
			msg = payload.Detail
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &RemoteError{Status: resp.StatusCode, Message: msg}
}
