package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
)

type Carts struct {
	client
}

func NewCarts(url string) *Carts {
	return &Carts{client: newClient(url)}
}

func cartPath(customerID string) string {
	return "/carts/" + url.PathEscape(customerID)
}

func (c *Carts) Get(ctx context.Context, customerID string) (fixtures.Cart, error) {
	var cart fixtures.Cart
	err := c.do(ctx, http.MethodGet, cartPath(customerID), nil, &cart)
	return cart, err
}

func (c *Carts) Items(ctx context.Context, customerID string) ([]fixtures.CartItem, error) {
	var items []fixtures.CartItem
	if err := c.do(ctx, http.MethodGet, cartPath(customerID)+"/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem adds item to the cart of the customer and returns the item as stored.
func (c *Carts) AddItem(ctx context.Context, customerID string, item fixtures.CartItem) (fixtures.CartItem, error) {
	var added fixtures.CartItem
	err := c.do(ctx, http.MethodPost, cartPath(customerID)+"/items", item, &added)
	return added, err
}

func (c *Carts) UpdateItem(ctx context.Context, customerID string, item fixtures.CartItem) error {
	return c.do(ctx, http.MethodPatch, cartPath(customerID)+"/items", item, nil)
}

func (c *Carts) RemoveItem(ctx context.Context, customerID, itemID string) error {
	return c.do(ctx, http.MethodDelete, cartPath(customerID)+"/items/"+url.PathEscape(itemID), nil, nil)
}

func (c *Carts) Delete(ctx context.Context, customerID string) error {
	return c.do(ctx, http.MethodDelete, cartPath(customerID), nil, nil)
}
