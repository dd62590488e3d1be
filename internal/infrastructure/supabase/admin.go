// Package supabase talks to the Supabase Auth admin API with the service role key.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 30 * time.Second
	authPath       = "/auth/v1"
	usersPath      = authPath + "/admin/users"
	maxPerPage     = 1000
)

var (
	// ErrUserNotFound is returned when the identity record does not exist.
	ErrUserNotFound = errors.New("supabase user not found")
	// ErrInvalidUserID is returned for ids that are not uuids.
	ErrInvalidUserID = errors.New("supabase user id must be a uuid")
)

// User is the subset of the GoTrue user object the backend reads.
type User struct {
	ID           string
	Email        string
	CreatedAt    time.Time
	LastSignInAt *time.Time
}

// AdminClient wraps the auth-go admin endpoints. auth-go builds requests
// without a context, so every call binds its own transport carrying the
// caller's context and, for listing, the page window.
type AdminClient struct {
	api       gotrue.Client
	transport http.RoundTripper
}

func NewAdminClient(baseURL, serviceRoleKey string) *AdminClient {
	api := gotrue.New("", serviceRoleKey).
		WithCustomAuthURL(strings.TrimRight(baseURL, "/") + authPath).
		WithToken(serviceRoleKey)

	return &AdminClient{
		api:       api,
		transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// DeleteUser removes the auth identity record.
func (c *AdminClient) DeleteUser(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}

	call := c.bind(ctx, 0)
	if err := call.api.AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id}); err != nil {
		if call.status == http.StatusNotFound {
			return ErrUserNotFound
		}
		return fmt.Errorf("supabase delete user: %w", err)
	}
	return nil
}

// ListUsers walks every page of the admin user list.
func (c *AdminClient) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	for page := 1; ; page++ {
		call := c.bind(ctx, page)
		resp, err := call.api.AdminListUsers()
		if err != nil {
			return nil, fmt.Errorf("supabase list users page %d: %w", page, err)
		}

		for _, u := range resp.Users {
			all = append(all, User{
				ID:           u.ID.String(),
				Email:        u.Email,
				CreatedAt:    u.CreatedAt,
				LastSignInAt: u.LastSignInAt,
			})
		}
		if len(resp.Users) < maxPerPage {
			return all, nil
		}
	}
}

type boundCall struct {
	api    gotrue.Client
	status int
}

func (c *AdminClient) bind(ctx context.Context, page int) *boundCall {
	call := &boundCall{}
	rt := &callTransport{ctx: ctx, page: page, next: c.transport, status: &call.status}
	call.api = c.api.WithClient(http.Client{Timeout: defaultTimeout, Transport: rt})
	return call
}

// callTransport attaches ctx to the outgoing request, sets the list window
// when page is non-zero and records the response status.
type callTransport struct {
	ctx    context.Context
	page   int
	next   http.RoundTripper
	status *int
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.page > 0 && req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, usersPath) {
		q := req.URL.Query()
		q.Set("page", strconv.Itoa(t.page))
		q.Set("per_page", strconv.Itoa(maxPerPage))
		req.URL.RawQuery = q.Encode()
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	*t.status = resp.StatusCode
	return resp, nil
}
