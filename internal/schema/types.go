package schema

// Scan statuses reported by the scan API.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// IsTerminal reports whether polling should stop at this status.
func IsTerminal(status string) bool {
	return status == StatusComplete || status == StatusFailed
}

// Scan is the full scan record returned by GET /scans/teams/{team}/scans/{scan}
type Scan struct {
	ScanID      string             `json:"scan_id"`
	TeamID      string             `json:"team_id"`
	URL         string             `json:"url"`
	Status      string             `json:"status"`
	Screenshot  string             `json:"screenshot,omitempty"`
	FullCode    string             `json:"full_code,omitempty"`
	Title       string             `json:"title,omitempty"`
	H1          string             `json:"h1,omitempty"`
	CreatedAt   string             `json:"created_at,omitempty"`
	LastUpdated string             `json:"last_updated,omitempty"`
	Downloads   []Download         `json:"downloads,omitempty"`
	Requests    []CapturedRequest  `json:"requests,omitempty"`
	Responses   []CapturedResponse `json:"responses,omitempty"`
	Links       []string           `json:"links,omitempty"`
	Scripts     []string           `json:"scripts,omitempty"`
	SSLInfo     *SSLInfo           `json:"ssl_info,omitempty"`
}

// ScanSummary is one row of the paginated scan list
type ScanSummary struct {
	ScanID      string `json:"scan_id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	H1          string `json:"h1,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	LastUpdated string `json:"last_updated"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// ScanPage is a page of scan summaries plus the total count.
type ScanPage struct {
	Items []ScanSummary `json:"items"`
	Count int           `json:"count"`
}

// ScanCreate is the body of an initiate-scan request.
type ScanCreate struct {
	URL string `json:"url"`
}

// Download is a file the scan engine captured while visiting the page.
type Download struct {
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
	ZipKey   string `json:"zip_key,omitempty"`
	S3Key    string `json:"s3_key,omitempty"`
}

// Key returns the storage key of the archived download, if any.
func (d Download) Key() string {
	if d.ZipKey != "" {
		return d.ZipKey
	}
	return d.S3Key
}

type CapturedRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type CapturedResponse struct {
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	URL    string `json:"url"`
}

// SSLInfo holds the TLS certificate details recorded for the scanned host.
// When the handshake failed only Error is set.
type SSLInfo struct {
	Subject    map[string]string `json:"subject,omitempty"`
	Issuer     map[string]string `json:"issuer,omitempty"`
	SAN        []string          `json:"san,omitempty"`
	ValidFrom  string            `json:"valid_from,omitempty"`
	ValidTo    string            `json:"valid_to,omitempty"`
	ServerIP   string            `json:"server_ip,omitempty"`
	ServerPort int               `json:"server_port,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Role is a team membership role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRequestor Role = "requestor"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r is one of the roles the API accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRequestor, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Membership struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Role     Role   `json:"role"`
}

// CurrentUser is the response of GET /users/me
type CurrentUser struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Memberships []Membership `json:"memberships"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Member struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Password string `json:"password,omitempty"` // only set by create-member
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is returned by POST /token/pair
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type SiteSettings struct {
	AllowRegistration bool `json:"allow_registration"`
}

// Analytics

type OverviewDelta struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	DeltaPct float64 `json:"delta_pct"`
}

type Overview struct {
	TotalScans         int           `json:"total_scans"`
	AvgDurationSeconds float64       `json:"avg_duration_seconds"`
	TotalDatapoints    int           `json:"total_datapoints"`
	SuccessRatePct     float64       `json:"success_rate_pct"`
	DayOverDay         OverviewDelta `json:"day_over_day"`
	WeekOverWeek       OverviewDelta `json:"week_over_week"`
}

type TimeseriesPoint struct {
	Date               string  `json:"date"`
	Count              int     `json:"count"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	TotalDatapoints    int     `json:"total_datapoints"`
}

type Timeseries struct {
	Points []TimeseriesPoint `json:"points"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type CategoryList struct {
	Items []CategoryCount `json:"items"`
}
