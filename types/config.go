package types

import "time"

type SaiGatewayConfig struct {
	Environment string `yaml:"environment"`

	// Data plane listener, separate from the sai-service management server.
	ListenAddr string `yaml:"listen_addr"`

	// Defaults applied when the service registry excerpt carries no
	// timeout values of its own. RequestTimeout is in seconds.
	RequestTimeout        int `yaml:"request_timeout"`
	RequestTimeoutRenewal int `yaml:"request_timeout_renewal"`

	// When true no renewal watchdog is armed and proxied calls run to
	// natural completion.
	RenewReqMonitorOff bool `yaml:"renew_req_monitor_off"`

	// Offset added to a service port to reach its maintenance port when
	// the registry excerpt does not pin one explicitly.
	MaintenancePortInc int `yaml:"maintenance_port_inc"`

	OAuth    OAuthServiceConfig `yaml:"oauth"`
	Consul   ConsulConfig       `yaml:"consul"`
	Redis    RedisConfig        `yaml:"redis"`
	Throttle ThrottleConfig     `yaml:"throttle"`
}

// OAuthServiceConfig identifies the external oauth service and its two
// endpoints that are always reachable without a verified token.
type OAuthServiceConfig struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	TokenAPI         string `yaml:"token_api"`
	AuthorizationAPI string `yaml:"authorization_api"`

	// When true a token that carries an embedded user record is trusted
	// as-is instead of triggering a lookup against the identity service.
	GetUserFromToken bool `yaml:"get_user_from_token"`
}

type ConsulConfig struct {
	Addr       string `yaml:"addr"`
	Datacenter string `yaml:"datacenter"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ThrottleConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int64         `yaml:"limit" validate:"min=0"`
	Window  time.Duration `yaml:"window"`
}

const (
	DefaultRequestTimeout        = 30
	DefaultRequestTimeoutRenewal = 5
	DefaultMaintenancePortInc    = 1000
)

// Normalize fills the zero values the yaml file may leave out.
func (c *SaiGatewayConfig) Normalize() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeoutRenewal <= 0 {
		c.RequestTimeoutRenewal = DefaultRequestTimeoutRenewal
	}
	if c.MaintenancePortInc <= 0 {
		c.MaintenancePortInc = DefaultMaintenancePortInc
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":4000"
	}
}
