package clients

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
)

type Payment struct {
	client
}

func NewPayment(url string) *Payment {
	return &Payment{client: newClient(url)}
}

// Authorise asks for a payment authorisation. A declined payment is not an
// error, it comes back with Authorised false.
func (p *Payment) Authorise(ctx context.Context, req fixtures.PaymentRequest) (fixtures.PaymentAuthorisation, error) {
	var auth fixtures.PaymentAuthorisation
	err := p.do(ctx, http.MethodPost, "/paymentAuth", req, &auth)
	return auth, err
}

func (p *Payment) Health(ctx context.Context) (string, error) {
	var health struct {
		Status string `json:"status"`
	}
	err := p.do(ctx, http.MethodGet, "/health", nil, &health)
	return health.Status, err
}
