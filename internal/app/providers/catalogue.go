package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/labstack/echo/v4"
)

type CatalogueProvider struct {
	*Server
	Store *CatalogueStore
}

func NewCatalogue(store *CatalogueStore) *CatalogueProvider {
	if store == nil {
		store = NewCatalogueStore()
	}
	p := &CatalogueProvider{Server: newServer(Catalogue), Store: store}

	// size must be routed before the id lookup
	p.Echo.GET("/catalogue", p.list)
	p.Echo.GET("/catalogue/size", p.size)
	p.Echo.GET("/catalogue/:id", p.get)
	p.Echo.GET("/tags", p.tags)

	p.States.Default(p.productsExist)
	p.States.MustRegister("products-exist", "products exist", p.productsExist)
	p.States.MustRegister("product-exists", "product with ID {id} exists", p.productExists)
	p.States.MustRegister("product-missing", "product with ID {id} does not exist", p.productMissing)
	p.States.MustRegister("no-products", "no products exist", p.noProducts)
	return p
}

func (p *CatalogueProvider) productsExist(_ context.Context, _ providerstate.State) error {
	p.Store.Reset()
	p.Store.Seed(fixtures.Products()...)
	return nil
}

func (p *CatalogueProvider) productExists(_ context.Context, s providerstate.State) error {
	p.Store.Reset()
	p.Store.Seed(fixtures.Products()...)
	if _, ok := p.Store.Get(s.Param("id")); !ok {
		p.Store.Seed(fixtures.ProductByID(s.Param("id")))
	}
	return nil
}

func (p *CatalogueProvider) productMissing(_ context.Context, s providerstate.State) error {
	p.Store.Reset()
	for _, product := range fixtures.Products() {
		if product.ID != s.Param("id") {
			p.Store.Seed(product)
		}
	}
	return nil
}

func (p *CatalogueProvider) noProducts(_ context.Context, _ providerstate.State) error {
	p.Store.Reset()
	return nil
}

func tagsQuery(c echo.Context) []string {
	var tags []string
	for _, tag := range strings.Split(c.QueryParam("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (p *CatalogueProvider) list(c echo.Context) error {
	return c.JSON(http.StatusOK, p.Store.List(tagsQuery(c)...))
}

func (p *CatalogueProvider) size(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"size": p.Store.Size(tagsQuery(c)...)})
}

func (p *CatalogueProvider) get(c echo.Context) error {
	id := c.Param("id")
	product, ok := p.Store.Get(id)
	if !ok {
		return httpresponse.JSON(c, http.StatusNotFound, "product %s not found", id)
	}
	return c.JSON(http.StatusOK, product)
}

func (p *CatalogueProvider) tags(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"tags": p.Store.Tags()})
}
