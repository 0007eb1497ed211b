package contracts

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/form3tech-oss/pact-harness/pkg/clients"
)

const unknownCustomerID = "customer-99"

func itemLike(item fixtures.CartItem) *matchers.Matcher {
	return matchers.From(matchers.Map{
		"itemId":    matchers.UUIDOf(item.ItemID),
		"quantity":  matchers.Integer(item.Quantity),
		"unitPrice": matchers.Decimal(item.UnitPrice),
	})
}

func itemBody(item fixtures.CartItem) *matchers.Matcher {
	return matchers.Like(matchers.Map{
		"itemId":    item.ItemID,
		"quantity":  item.Quantity,
		"unitPrice": item.UnitPrice,
	})
}

func Carts() []Scenario {
	customer := fixtures.CustomerID
	cartPath := "/carts/" + customer
	item := fixtures.CartItems()[0]
	updated := fixtures.NewCartItem(item.ItemID, 3, item.UnitPrice)
	inCart := "cart for customer " + customer + " contains item " + item.ItemID

	return []Scenario{
		{
			Interaction: contract.Interaction{
				Description:   "a request for the cart of " + customer,
				ProviderState: "cart has items for customer " + customer,
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.Term(cartPath, `^/carts/[^/]+$`),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body: matchers.From(matchers.Map{
						"customerId": customer,
						"items":      matchers.EachLike(itemLike(item), 1),
					}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				cart, err := clients.NewCarts(baseURL).Get(ctx, customer)
				if err != nil {
					return err
				}
				if len(cart.Items) == 0 {
					return unexpected("cart items", cart.Items)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for the cart of a customer without one",
				ProviderState: "no cart exists for customer " + unknownCustomerID,
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/carts/" + unknownCustomerID),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body: matchers.From(matchers.Map{
						"customerId": unknownCustomerID,
						"items":      []interface{}{},
					}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				cart, err := clients.NewCarts(baseURL).Get(ctx, unknownCustomerID)
				if err != nil {
					return err
				}
				if len(cart.Items) != 0 {
					return unexpected("cart items", cart.Items)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for the items in the cart of " + customer,
				ProviderState: "cart has items for customer " + customer,
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From(cartPath + "/items"),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    matchers.EachLike(itemLike(item), 1),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewCarts(baseURL).Items(ctx, customer)
				return err
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to add an item to the cart",
				ProviderState: "empty cart for customer " + customer,
				Request: contract.Request{
					Method:  http.MethodPost,
					Path:    matchers.From(cartPath + "/items"),
					Headers: jsonHeaders(),
					Body:    itemBody(item),
				},
				Response: contract.Response{
					Status:  http.StatusCreated,
					Headers: jsonHeaders(),
					Body:    itemLike(item),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewCarts(baseURL).AddItem(ctx, customer, item)
				return err
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to change the quantity of an item",
				ProviderState: inCart,
				Request: contract.Request{
					Method:  http.MethodPatch,
					Path:    matchers.From(cartPath + "/items"),
					Headers: jsonHeaders(),
					Body:    itemBody(updated),
				},
				Response: contract.Response{
					Status:  http.StatusAccepted,
					Headers: jsonHeaders(),
					Body:    itemLike(updated),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				return clients.NewCarts(baseURL).UpdateItem(ctx, customer, updated)
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to remove an item from the cart",
				ProviderState: inCart,
				Request: contract.Request{
					Method: http.MethodDelete,
					Path:   matchers.From(cartPath + "/items/" + item.ItemID),
				},
				Response: contract.Response{
					Status: http.StatusNoContent,
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				return clients.NewCarts(baseURL).RemoveItem(ctx, customer, item.ItemID)
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request to delete the cart",
				ProviderState: "cart exists for customer " + customer,
				Request: contract.Request{
					Method: http.MethodDelete,
					Path:   matchers.From(cartPath),
				},
				Response: contract.Response{
					Status:  http.StatusAccepted,
					Headers: jsonHeaders(),
					Body:    matchers.From(matchers.Map{"status": "accepted"}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				return clients.NewCarts(baseURL).Delete(ctx, customer)
			},
		},
	}
}
