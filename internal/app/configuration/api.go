package configuration

import (
	"fmt"
	"io"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/verifier"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type providerStatus struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	StateSetupURL string `json:"stateSetupUrl"`
}

type startRequest struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

type admin struct {
	config  Config
	servers *Servers
}

// ServeAdminAPI serves the API that starts and stops the mock providers in
// servers and verifies pacts against them.
func ServeAdminAPI(config Config, servers *Servers) *echo.Echo {
	adminServer := NewAdminAPI(config, servers)

	go func() {
		address := fmt.Sprintf(":%d", config.AdminPort)
		if err := adminServer.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	return adminServer
}

func NewAdminAPI(config Config, servers *Servers) *echo.Echo {
	adminServer := echo.New()
	adminServer.HideBanner = true
	adminServer.HTTPErrorHandler = httpresponse.ErrorHandler

	a := admin{config: config, servers: servers}
	adminServer.GET("/providers", a.getProvidersHandler)
	adminServer.POST("/providers", a.postProvidersHandler)
	adminServer.DELETE("/providers", a.deleteProvidersHandler)
	adminServer.POST("/verifications", a.postVerificationsHandler)
	return adminServer
}

func status(name, url, stateSetupURL string) providerStatus {
	return providerStatus{Name: name, URL: url, StateSetupURL: stateSetupURL}
}

func (a admin) getProvidersHandler(c echo.Context) error {
	statuses := []providerStatus{}
	for _, s := range a.servers.Running() {
		statuses = append(statuses, status(s.Name, s.URL(), s.StateSetupURL()))
	}
	return c.JSON(http.StatusOK, statuses)
}

func (a admin) postProvidersHandler(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to parse provider from data. %s", err.Error())
	}

	port := req.Port
	if port == 0 {
		configured, err := a.config.Port(req.Name)
		if err != nil {
			return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
		}
		port = configured
	}

	log.Infof("starting %s provider on port %d", req.Name, port)
	server, err := a.servers.Start(req.Name, port)
	if err != nil {
		return httpresponse.JSON(c, http.StatusConflict, "unable to start provider. %s", err.Error())
	}
	return c.JSON(http.StatusCreated, status(server.Name, server.URL(), server.StateSetupURL()))
}

func (a admin) deleteProvidersHandler(c echo.Context) error {
	log.Infof("stopping all providers")
	a.servers.ShutdownAll(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// postVerificationsHandler verifies the posted pact against the running mock
// of its provider. A failed verification answers 422 with the report.
func (a admin) postVerificationsHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read pact. %s", err.Error())
	}

	artifact, err := contract.Parse(data)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}

	server, ok := a.servers.Get(artifact.Provider)
	if !ok {
		return httpresponse.JSON(c, http.StatusNotFound, "%s provider is not running", artifact.Provider)
	}

	v, err := verifier.New(verifier.Config{
		BaseURL:         server.URL(),
		StateHandler:    server,
		Publisher:       a.config.Publisher(),
		ProviderVersion: a.config.ProviderVersion,
	})
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}

	report, err := v.VerifyArtifact(c.Request().Context(), artifact)
	var verr *verifier.VerificationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, report)
	case err != nil:
		return httpresponse.JSON(c, http.StatusInternalServerError, "%s", err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
