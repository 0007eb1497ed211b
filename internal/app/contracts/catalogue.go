package contracts

import (
	"context"
	"net/http"

	"github.com/form3tech-oss/pact-harness/pkg/clients"
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
)

func productLike(p fixtures.Product) *matchers.Matcher {
	return matchers.From(matchers.Map{
		"id":          matchers.UUIDOf(p.ID),
		"name":        matchers.Like(p.Name),
		"description": matchers.Like(p.Description),
		"imageUrl":    matchers.EachLike(p.ImageURL[0], 1),
		"price":       matchers.Decimal(p.Price),
		"count":       matchers.Integer(p.Count),
		"tag":         matchers.EachLike(p.Tags[0], 1),
	})
}

func Catalogue() []Scenario {
	holy := fixtures.Products()[0]

	return []Scenario{
		{
			Interaction: contract.Interaction{
				Description:   "a request for the catalogue",
				ProviderState: "products exist",
				Request: contract.Request{
					Method:  http.MethodGet,
					Path:    matchers.From("/catalogue"),
					Headers: map[string]*matchers.Matcher{"Accept": matchers.From("application/json")},
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    matchers.EachLike(productLike(holy), 1),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				products, err := clients.NewCatalogue(baseURL).List(ctx)
				if err != nil {
					return err
				}
				if len(products) == 0 {
					return unexpected("catalogue size", 0)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for product " + holy.ID,
				ProviderState: "product with ID " + holy.ID + " exists",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.Term("/catalogue/"+holy.ID, `^/catalogue/[0-9a-f-]{36}$`),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    productLike(holy),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				product, err := clients.NewCatalogue(baseURL).Get(ctx, holy.ID)
				if err != nil {
					return err
				}
				if product.ID != holy.ID {
					return unexpected("product id", product.ID)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for a product that does not exist",
				ProviderState: "product with ID " + fixtures.UnknownProductID + " does not exist",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/catalogue/" + fixtures.UnknownProductID),
				},
				Response: contract.Response{
					Status:  http.StatusNotFound,
					Headers: jsonHeaders(),
					Body:    errorBody("product " + fixtures.UnknownProductID + " not found"),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewCatalogue(baseURL).Get(ctx, fixtures.UnknownProductID)
				if status := clients.StatusOf(err); status != http.StatusNotFound {
					return unexpected("status", status)
				}
				return nil
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for the number of formal or magic products",
				ProviderState: "products exist",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/catalogue/size"),
					Query:  "tags=formal,magic",
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    matchers.From(matchers.Map{"size": matchers.Integer(4)}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				_, err := clients.NewCatalogue(baseURL).Size(ctx, "formal", "magic")
				return err
			},
		},
		{
			Interaction: contract.Interaction{
				Description:   "a request for the product tags",
				ProviderState: "products exist",
				Request: contract.Request{
					Method: http.MethodGet,
					Path:   matchers.From("/tags"),
				},
				Response: contract.Response{
					Status:  http.StatusOK,
					Headers: jsonHeaders(),
					Body:    matchers.From(matchers.Map{"tags": matchers.EachLike("magic", 1)}),
				},
			},
			Exercise: func(ctx context.Context, baseURL string) error {
				tags, err := clients.NewCatalogue(baseURL).Tags(ctx)
				if err != nil {
					return err
				}
				if len(tags) == 0 {
					return unexpected("tags", tags)
				}
				return nil
			},
		},
	}
}
