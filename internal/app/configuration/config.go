package configuration

import (
	"context"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/broker"
	"github.com/form3tech-oss/pact-harness/internal/app/contracts"
	"github.com/form3tech-oss/pact-harness/internal/app/providers"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	PactDir         string        `env:"PACT_DIR,default=pacts"`      // Where recorded pacts are written
	AdminPort       int           `env:"ADMIN_PORT,default=8080"`     // Port of the admin API
	CataloguePort   int           `env:"CATALOGUE_PORT,default=8081"` // Port of the catalogue mock provider
	CartsPort       int           `env:"CARTS_PORT,default=8082"`     // Port of the carts mock provider
	PaymentPort     int           `env:"PAYMENT_PORT,default=8083"`   // Port of the payment mock provider
	WaitDelay       time.Duration `env:"WAIT_DELAY,default=500ms"`    // Polling interval when waiting for interactions
	WaitDuration    time.Duration `env:"WAIT_DURATION,default=15s"`   // How long to wait for interactions
	BrokerURL       string        `env:"BROKER_URL"`                  // Pact broker verified pacts are published to
	RedisAddr       string        `env:"REDIS_ADDR"`                  // Redis verified pacts are published to, when there is no broker
	ProviderVersion string        `env:"PROVIDER_VERSION"`            // Version verified pacts are published under
}

func NewFromEnv() (Config, error) {
	return newFromLookuper(context.Background(), envconfig.OsLookuper())
}

func newFromLookuper(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var config Config
	err := envconfig.ProcessWith(ctx, &config, lookuper)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	return config, nil
}

// Port is where the named mock provider listens.
func (c Config) Port(provider string) (int, error) {
	switch provider {
	case providers.Catalogue:
		return c.CataloguePort, nil
	case providers.Carts:
		return c.CartsPort, nil
	case providers.Payment:
		return c.PaymentPort, nil
	}
	return 0, errors.Errorf("unknown provider '%s'", provider)
}

// Publisher returns where verified pacts go, nil when publishing is not configured.
// A broker takes precedence over redis.
func (c Config) Publisher() broker.Publisher {
	switch {
	case c.BrokerURL != "":
		return broker.NewHTTPBroker(c.BrokerURL)
	case c.RedisAddr != "":
		return broker.NewRedisBroker(c.RedisAddr)
	}
	return nil
}

func (c Config) Recording() contracts.Config {
	return contracts.Config{
		PactDir:      c.PactDir,
		WaitDelay:    c.WaitDelay,
		WaitDuration: c.WaitDuration,
	}
}
