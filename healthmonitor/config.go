package healthmonitor

import (
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Backends is a list of backend configurations. NewHealthMonitor
	// does not read it: backends are registered only through Add.
	Backends []*BackendConfig `mapstructure:"backends"`
	// UnhealthyThreshold is the number of consecutive failed checks
	// before a backend is considered unhealthy.
	UnhealthyThreshold int `mapstructure:"unhealthy_threshold" default:"3"`
	// HealthyThreshold is the number of consecutive passing checks
	// before a backend is considered healthy.
	HealthyThreshold int `mapstructure:"healthy_threshold" default:"2"`
	// Interval is the time between health checks.
	Interval time.Duration `mapstructure:"interval" default:"30s"`
	// Timeout is the time to wait for a response before considering a
	// backend unhealthy. If greater than 2/3 the interval, it's
	// clamped to 2/3 the interval to avoid unnecessary deadlocks.
	Timeout time.Duration `mapstructure:"timeout" default:"5s"`
	// AcceptStatusCodes is the list of status code regex patterns
	// accepted as healthy.
	AcceptStatusCodes []string `mapstructure:"accept_status_codes" default:"[\"2.+\"]"`
	// HealthyInitially is the initial state assumed for a newly added
	// backend.
	HealthyInitially bool `mapstructure:"healthy_initially" default:"true"`
	// Protocol is the protocol used for every backend's health checks.
	Protocol Protocol `mapstructure:"protocol" default:"http"`
	// HttpPath is the path requested for HTTP/HTTPS checks.
	HttpPath string `mapstructure:"http_path" default:"/"`

	// EnableHealthyChannel enables sending to a channel when a backend
	// newly becomes healthy.
	EnableHealthyChannel bool `mapstructure:"send_new_healthy" default:"false"`
	// EnableUnhealthyChannel enables sending to a channel when a
	// backend newly becomes unhealthy.
	EnableUnhealthyChannel bool `mapstructure:"send_new_unhealthy" default:"false"`

	logger zerolog.Logger
}

// BackendConfig is the configuration shape of one entry of
// Config.Backends. The health monitor does not consume it: the
// per-backend Protocol, Timeout, AcceptStatusCodes and thresholds
// below are decoded from config but never applied, and every backend
// is checked with the global Config settings.
type BackendConfig struct {
	// Name is the name of this backend. Must be unique.
	Name string `mapstructure:"name"`
	// Url is the URL with healthcheck path of this backend.
	Url url.URL `mapstructure:"url"`
	// Protocol is a per-backend health-check protocol (not applied).
	Protocol Protocol `mapstructure:"protocol" default:"http"`
	// Timeout is a per-backend timeout (not applied).
	Timeout time.Duration `mapstructure:"timeout"`
	// AcceptStatusCodes is a per-backend list of accepted status code
	// patterns (not applied).
	AcceptStatusCodes []string `mapstructure:"accept_status_codes"`
	// UnhealthyThreshold is a per-backend unhealthy threshold (not
	// applied).
	UnhealthyThreshold int `mapstructure:"unhealthy_threshold"`
	// HealthyThreshold is a per-backend healthy threshold (not applied).
	HealthyThreshold int `mapstructure:"healthy_threshold"`
}

type Protocol string

const (
	HTTP  Protocol = "http"
	HTTPS Protocol = "https"
	TCP   Protocol = "tcp"
	ICMP  Protocol = "icmp"
)
