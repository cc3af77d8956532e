package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

func esc(s string) string { return url.PathEscape(s) }

// Auth

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, creds schema.Credentials) (schema.TokenPair, error) {
	var pair schema.TokenPair
	if err := c.Do(ctx, http.MethodPost, "/token/pair", creds, &pair); err != nil {
		return pair, err
	}
	if err := c.tokens.SetPair(pair.Access, pair.Refresh); err != nil {
		return pair, fmt.Errorf("store tokens: %w", err)
	}
	return pair, nil
}

// Logout forgets the stored tokens.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

func (c *Client) Register(ctx context.Context, creds schema.Credentials) (schema.User, error) {
	var u schema.User
	err := c.Do(ctx, http.MethodPost, "/users/register", creds, &u)
	return u, err
}

func (c *Client) Me(ctx context.Context) (schema.CurrentUser, error) {
	var u schema.CurrentUser
	err := c.Do(ctx, http.MethodGet, "/users/me", nil, &u)
	return u, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.Do(ctx, http.MethodPost, "/users/me/password", body, nil)
}

// Teams

func (c *Client) ListTeams(ctx context.Context) ([]schema.Team, error) {
	var teams []schema.Team
	err := c.Do(ctx, http.MethodGet, "/users/teams", nil, &teams)
	return teams, err
}

func (c *Client) CreateTeam(ctx context.Context, name string) (schema.Team, error) {
	var t schema.Team
	err := c.Do(ctx, http.MethodPost, "/users/team/create", map[string]string{"name": name}, &t)
	return t, err
}

// Members

func (c *Client) ListMembers(ctx context.Context, teamID string) ([]schema.Member, error) {
	var members []schema.Member
	err := c.Do(ctx, http.MethodGet, "/users/team/"+esc(teamID)+"/members", nil, &members)
	return members, err
}

func (c *Client) UpdateMember(ctx context.Context, teamID, userID string, role schema.Role) (schema.Member, error) {
	var m schema.Member
	if !role.Valid() {
		return m, fmt.Errorf("invalid role %q", role)
	}
	err := c.Do(ctx, http.MethodPatch, "/users/team/"+esc(teamID)+"/members/"+esc(userID), map[string]schema.Role{"role": role}, &m)
	return m, err
}

func (c *Client) RemoveMember(ctx context.Context, teamID, userID string) error {
	return c.Do(ctx, http.MethodDelete, "/users/team/"+esc(teamID)+"/members/"+esc(userID), nil, nil)
}

func (c *Client) SearchUsers(ctx context.Context, teamID, query string) ([]schema.User, error) {
	var users []schema.User
	qs := url.Values{"q": {query}}.Encode()
	err := c.Do(ctx, http.MethodGet, "/users/team/"+esc(teamID)+"/search-users?"+qs, nil, &users)
	return users, err
}

type memberIn struct {
	Email string      `json:"email"`
	Role  schema.Role `json:"role"`
}

// InviteMember adds an existing user to the team.
func (c *Client) InviteMember(ctx context.Context, teamID, email string, role schema.Role) (schema.Member, error) {
	var m schema.Member
	if !role.Valid() {
		return m, fmt.Errorf("invalid role %q", role)
	}
	err := c.Do(ctx, http.MethodPost, "/users/team/"+esc(teamID)+"/invite", memberIn{Email: email, Role: role}, &m)
	return m, err
}

// CreateMember creates a new account in the team. The response carries the
// generated password.
func (c *Client) CreateMember(ctx context.Context, teamID, email string, role schema.Role) (schema.Member, error) {
	var m schema.Member
	if !role.Valid() {
		return m, fmt.Errorf("invalid role %q", role)
	}
	err := c.Do(ctx, http.MethodPost, "/users/team/"+esc(teamID)+"/create-member", memberIn{Email: email, Role: role}, &m)
	return m, err
}

// Scans

func (c *Client) InitiateScan(ctx context.Context, teamID, target string) (schema.Scan, error) {
	var s schema.Scan
	err := c.Do(ctx, http.MethodPost, "/scans/teams/"+esc(teamID)+"/scans/initiate", schema.ScanCreate{URL: target}, &s)
	return s, err
}

func (c *Client) FetchScan(ctx context.Context, teamID, scanID string) (*schema.Scan, error) {
	var s schema.Scan
	if err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/scans/"+esc(scanID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListScans(ctx context.Context, teamID string, page, pageSize int) (schema.ScanPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	var p schema.ScanPage
	qs := url.Values{"page": {strconv.Itoa(page)}, "page_size": {strconv.Itoa(pageSize)}}.Encode()
	err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/scans?"+qs, nil, &p)
	return p, err
}

// Analytics

func (c *Client) Overview(ctx context.Context, teamID string) (schema.Overview, error) {
	var o schema.Overview
	err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/analytics/overview", nil, &o)
	return o, err
}

func (c *Client) Timeseries(ctx context.Context, teamID string, windowDays int) (schema.Timeseries, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	var ts schema.Timeseries
	err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/analytics/timeseries?window_days="+strconv.Itoa(windowDays), nil, &ts)
	return ts, err
}

func (c *Client) StatusBreakdown(ctx context.Context, teamID string) (schema.CategoryList, error) {
	var l schema.CategoryList
	err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/analytics/status", nil, &l)
	return l, err
}

func (c *Client) TopDomains(ctx context.Context, teamID string, limit int) (schema.CategoryList, error) {
	if limit <= 0 {
		limit = 10
	}
	var l schema.CategoryList
	err := c.Do(ctx, http.MethodGet, "/scans/teams/"+esc(teamID)+"/analytics/top-domains?limit="+strconv.Itoa(limit), nil, &l)
	return l, err
}

// Settings

func (c *Client) GetSettings(ctx context.Context) (schema.SiteSettings, error) {
	var s schema.SiteSettings
	err := c.Do(ctx, http.MethodGet, "/users/settings", nil, &s)
	return s, err
}

func (c *Client) UpdateSettings(ctx context.Context, allowRegistration bool) (schema.SiteSettings, error) {
	var s schema.SiteSettings
	err := c.Do(ctx, http.MethodPut, "/users/settings", schema.SiteSettings{AllowRegistration: allowRegistration}, &s)
	return s, err
}
