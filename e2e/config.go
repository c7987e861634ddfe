package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DIAL_GRACE shortens the pause between conference start and
	// dial-out so scenarios finish quickly.
	DialGrace time.Duration `envconfig:"E2E_DIAL_GRACE" default:"10ms"`
	// E2E_SCHEDULE_LEAD is how far in the future scheduled triggers are set.
	ScheduleLead time.Duration `envconfig:"E2E_SCHEDULE_LEAD" default:"50ms"`
	// E2E_WAIT_TIMEOUT bounds every Eventually poll in the scenarios.
	WaitTimeout time.Duration `envconfig:"E2E_WAIT_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
