package providers

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/labstack/echo/v4"
)

type PaymentProvider struct {
	*Server
	State *PaymentState
}

func NewPayment(state *PaymentState) *PaymentProvider {
	if state == nil {
		state = NewPaymentState()
	}
	p := &PaymentProvider{Server: newServer(Payment), State: state}

	p.Echo.POST("/paymentAuth", p.authorise)
	p.Echo.GET("/health", p.health)

	p.States.Default(p.healthy)
	p.States.MustRegister("healthy", "payment service is healthy", p.healthy)
	p.States.MustRegister("unavailable", "payment service is unavailable", p.unavailable)
	p.States.MustRegister("card-declined", "card {cardNumber} will be declined", p.cardDeclined)
	p.States.MustRegister("all-declined", "all payments are declined", p.allDeclined)
	return p
}

func (p *PaymentProvider) healthy(_ context.Context, _ providerstate.State) error {
	p.State.Reset()
	return nil
}

func (p *PaymentProvider) unavailable(_ context.Context, _ providerstate.State) error {
	p.State.Reset()
	p.State.SetUnavailable(true)
	return nil
}

func (p *PaymentProvider) cardDeclined(_ context.Context, s providerstate.State) error {
	p.State.Reset()
	p.State.DeclineCard(s.Param("cardNumber"))
	return nil
}

func (p *PaymentProvider) allDeclined(_ context.Context, _ providerstate.State) error {
	p.State.Reset()
	p.State.SetDeclineAll(true)
	return nil
}

func (p *PaymentProvider) authorise(c echo.Context) error {
	if !p.State.Available() {
		return httpresponse.JSON(c, http.StatusServiceUnavailable, "payment service unavailable")
	}

	var req fixtures.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to parse payment request. %s", err.Error())
	}
	if req.Amount <= 0 {
		return httpresponse.JSON(c, http.StatusBadRequest, "invalid payment amount %v", req.Amount)
	}

	return c.JSON(http.StatusOK, p.State.Authorise(req))
}

func (p *PaymentProvider) health(c echo.Context) error {
	if !p.State.Available() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
