package providers

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/labstack/echo/v4"
)

type CartsProvider struct {
	*Server
	Store *CartStore
}

func NewCarts(store *CartStore) *CartsProvider {
	if store == nil {
		store = NewCartStore()
	}
	p := &CartsProvider{Server: newServer(Carts), Store: store}

	p.Echo.GET("/carts/:customerId", p.getCart)
	p.Echo.DELETE("/carts/:customerId", p.deleteCart)
	p.Echo.GET("/carts/:customerId/items", p.items)
	p.Echo.POST("/carts/:customerId/items", p.addItem)
	p.Echo.PATCH("/carts/:customerId/items", p.updateItem)
	p.Echo.DELETE("/carts/:customerId/items/:itemId", p.removeItem)

	p.States.Default(p.reset)
	p.States.MustRegister("cart-exists", "cart exists for customer {customerId}", p.cartWithItems)
	p.States.MustRegister("cart-has-items", "cart has items for customer {customerId}", p.cartWithItems)
	p.States.MustRegister("empty-cart", "empty cart for customer {customerId}", p.emptyCart)
	p.States.MustRegister("no-cart", "no cart exists for customer {customerId}", p.reset)
	p.States.MustRegister("item-in-cart", "cart for customer {customerId} contains item {itemId}", p.cartWithItem)
	return p
}

func (p *CartsProvider) reset(_ context.Context, _ providerstate.State) error {
	p.Store.Reset()
	return nil
}

func (p *CartsProvider) cartWithItems(_ context.Context, s providerstate.State) error {
	p.Store.Reset()
	p.Store.Seed(fixtures.NewCart(s.Param("customerId"), fixtures.CartItems()...))
	return nil
}

func (p *CartsProvider) emptyCart(_ context.Context, s providerstate.State) error {
	p.Store.Reset()
	p.Store.Seed(fixtures.EmptyCart(s.Param("customerId")))
	return nil
}

func (p *CartsProvider) cartWithItem(_ context.Context, s providerstate.State) error {
	product := fixtures.ProductByID(s.Param("itemId"))
	p.Store.Reset()
	p.Store.Seed(fixtures.NewCart(s.Param("customerId"), fixtures.NewCartItem(product.ID, 1, product.Price)))
	return nil
}

// getCart answers an unknown customer with an empty cart, carts are created on first use.
func (p *CartsProvider) getCart(c echo.Context) error {
	customerID := c.Param("customerId")
	cart, ok := p.Store.Get(customerID)
	if !ok {
		cart = fixtures.EmptyCart(customerID)
	}
	return c.JSON(http.StatusOK, cart)
}

func (p *CartsProvider) deleteCart(c echo.Context) error {
	p.Store.Delete(c.Param("customerId"))
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (p *CartsProvider) items(c echo.Context) error {
	cart, ok := p.Store.Get(c.Param("customerId"))
	if !ok {
		return c.JSON(http.StatusOK, []fixtures.CartItem{})
	}
	return c.JSON(http.StatusOK, cart.Items)
}

// bindItem decodes a cart item, returning a non empty reason when the body is unusable.
func bindItem(c echo.Context) (fixtures.CartItem, string) {
	var item fixtures.CartItem
	if err := c.Bind(&item); err != nil {
		return item, "unable to parse cart item. " + err.Error()
	}
	if item.ItemID == "" {
		return item, "itemId is required"
	}
	if item.Quantity < 0 {
		return item, "quantity must not be negative"
	}
	return item, ""
}

func (p *CartsProvider) addItem(c echo.Context) error {
	item, problem := bindItem(c)
	if problem != "" {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", problem)
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	return c.JSON(http.StatusCreated, p.Store.AddItem(c.Param("customerId"), item))
}

func (p *CartsProvider) updateItem(c echo.Context) error {
	item, problem := bindItem(c)
	if problem != "" {
		return httpresponse.JSON(c, http.StatusBadRequest, "%s", problem)
	}
	updated, err := p.Store.UpdateItem(c.Param("customerId"), item)
	if err != nil {
		return httpresponse.JSON(c, http.StatusNotFound, "%s", err.Error())
	}
	return c.JSON(http.StatusAccepted, updated)
}

func (p *CartsProvider) removeItem(c echo.Context) error {
	if err := p.Store.RemoveItem(c.Param("customerId"), c.Param("itemId")); err != nil {
		return httpresponse.JSON(c, http.StatusNotFound, "%s", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
