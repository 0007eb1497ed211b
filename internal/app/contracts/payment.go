package contracts

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/form3tech-oss/pact-harness/pkg/clients"
)

func paymentBody(req fixtures.PaymentRequest) *matchers.Matcher {
	return matchers.Like(matchers.Map{
		"customerId": req.CustomerID,
		"amount":     req.Amount,
		"card": matchers.Map{
			"longNum": req.Card.LongNum,
			"expires": req.Card.Expires,
			"ccv":     req.Card.CCV,
		},
	})
}

func authorisationRequest(req fixtures.PaymentRequest) contract.Request {
	return contract.Request{
		Method:  http.MethodPost,
		Path:    matchers.From("/paymentAuth"),
		Headers: jsonHeaders(),
		Body:    paymentBody(req),
	}
}

func Payment() []Scenario {
	approved := fixtures.NewPaymentRequest(50)
	declined := fixtures.DeclinedPaymentRequest(50)

	return []Scenario{
		{
			Interaction: contract.Interaction{
				Description:   "a request to authorise a payment",
				ProviderState: "payment service is healthy",
				Request:       authorisationRequest(approved),
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body: matchers.From(matchers.Map{
						"authorised": true,
						"message":    matchers.Like(fixtures.AuthorisedMessage),
					}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				auth, err := clients.NewPayment(baseURL).Authorise(ctx, approved)
				if err != nil {
					return err
				}
				if !auth.Authorised {
					return unexpected("authorisation", auth.Message)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to authorise a payment with a declined card",
				ProviderState: "card " + fixtures.DeclinedCardNumber + " will be declined",
				Request:       authorisationRequest(declined),
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body: matchers.From(matchers.Map{
						"authorised": false,
						"message":    matchers.Like(fixtures.DeclinedMessage),
					}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				auth, err := clients.NewPayment(baseURL).Authorise(ctx, declined)
				if err != nil {
					return err
				}
				if auth.Authorised {
					return unexpected("authorisation", auth.Message)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to authorise a payment while the service is unavailable",
				ProviderState: "payment service is unavailable",
				Request:       authorisationRequest(approved),
				Response: contract.Response{
					Status:  http.StatusServiceUnavailable,
					Headers: jsonHeaders(),
					Body:    errorBody("payment service unavailable"),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewPayment(baseURL).Authorise(ctx, approved)
				if status := clients.StatusOf(err); status != http.StatusServiceUnavailable {
					return unexpected("status", status)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a health check",
				ProviderState: "payment service is healthy",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/health"),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    matchers.From(matchers.Map{"status": "healthy"}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewPayment(baseURL).Health(ctx)
				return err
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a health check while the service is unavailable",
				ProviderState: "payment service is unavailable",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/health"),
				},
				Response: contract.Response{
					Status:  http.StatusServiceUnavailable,
					Headers: jsonHeaders(),
					Body:    matchers.From(matchers.Map{"status": "unhealthy"}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewPayment(baseURL).Health(ctx)
				if status := clients.StatusOf(err); status != http.StatusServiceUnavailable {
					return unexpected("status", status)
				}
				return nil
			},
		},
	}
}
