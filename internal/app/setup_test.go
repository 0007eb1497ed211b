package app

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/form3tech-oss/pact-harness/internal/app/configuration"
	"github.com/pact-foundation/pact-go/utils"
)

var adminURL string

func TestMain(m *testing.M) {
	adminPort, err := utils.GetFreePort()
	if err != nil {
		panic(err)
	}

	adminServer := configuration.ServeAdminAPI(configuration.Config{AdminPort: adminPort}, configuration.NewServers())
	adminURL = fmt.Sprintf("http://localhost:%d", adminPort)

	err = retry.Do(
		func() error {
			res, err := http.Get(adminURL + "/providers")
			if err != nil {
				return err
			}
			res.Body.Close()
			return nil
		},
		retry.Attempts(10),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(100*time.Millisecond),
	)
	if err != nil {
		panic(err)
	}

	code := m.Run()
	adminServer.Close()
	os.Exit(code)
}
