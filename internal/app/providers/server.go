// Package providers implements the mock catalogue, carts and payment providers.
// Every provider owns its store, so independent test runs never share state.
package providers

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	Catalogue = "catalogue"
	Carts     = "carts"
	Payment   = "payment"

	StateSetupPath = "/_pact/provider-states"
)

var Names = []string{Catalogue, Carts, Payment}

type Server struct {
	Name   string
	Echo   *echo.Echo
	States *providerstate.Registry

	server *http.Server
	url    string
}

func newServer(name string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpresponse.ErrorHandler

	s := &Server{
		Name:   name,
		Echo:   e,
		States: providerstate.NewRegistry(name),
	}
	e.POST(StateSetupPath, s.stateSetupHandler)
	return s
}

// New builds the named mock provider with a fresh store.
func New(name string) (*Server, error) {
	switch name {
	case Catalogue:
		return NewCatalogue(nil).Server, nil
	case Carts:
		return NewCarts(nil).Server, nil
	case Payment:
		return NewPayment(nil).Server, nil
	}
	return nil, errors.Errorf("unknown provider '%s'", name)
}

// Start serves on an ephemeral localhost port.
func (s *Server) Start() error {
	return s.Listen("127.0.0.1:0")
}

func (s *Server) Listen(address string) error {
	if s.server != nil {
		return errors.Errorf("provider %s already running at %s", s.Name, s.url)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", address)
	}

	server := &http.Server{Handler: s.Echo}
	s.server = server
	s.url = fmt.Sprintf("http://%s", listener.Addr().String())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	log.Infof("%s provider listening on %s", s.Name, s.url)
	return nil
}

func (s *Server) URL() string {
	return s.url
}

func (s *Server) StateSetupURL() string {
	return s.url + StateSetupPath
}

func (s *Server) Close(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Infof("stopping %s provider", s.Name)
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// SetUp puts the provider into the described state.
func (s *Server) SetUp(ctx context.Context, description string) error {
	return s.States.SetUp(ctx, description)
}

func (s *Server) stateSetupHandler(c echo.Context) error {
	var req providerstate.SetupRequest
	if err := c.Bind(&req); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to parse state setup request. %s", err.Error())
	}

	state := req.State
	if state == "" && len(req.States) > 0 {
		state = req.States[0]
	}

	if err := s.States.SetUp(c.Request().Context(), state); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"state": state})
}
