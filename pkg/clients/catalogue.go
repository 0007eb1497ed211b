package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
)

type Catalogue struct {
	client
}

func NewCatalogue(url string) *Catalogue {
	return &Catalogue{client: newClient(url)}
}

func tagsQuery(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	q := url.Values{}
	q.Set("tags", strings.Join(tags, ","))
	return "?" + q.Encode()
}

// List returns the products carrying any of tags, or every product without tags.
func (c *Catalogue) List(ctx context.Context, tags ...string) ([]fixtures.Product, error) {
	var products []fixtures.Product
	if err := c.do(ctx, http.MethodGet, "/catalogue"+tagsQuery(tags), nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Catalogue) Get(ctx context.Context, id string) (fixtures.Product, error) {
	var product fixtures.Product
	err := c.do(ctx, http.MethodGet, "/catalogue/"+url.PathEscape(id), nil, &product)
	return product, err
}

func (c *Catalogue) Size(ctx context.Context, tags ...string) (int, error) {
	var size struct {
		Size int `json:"size"`
	}
	err := c.do(ctx, http.MethodGet, "/catalogue/size"+tagsQuery(tags), nil, &size)
	return size.Size, err
}

func (c *Catalogue) Tags(ctx context.Context) ([]string, error) {
	var tags struct {
		Tags []string `json:"tags"`
	}
	err := c.do(ctx, http.MethodGet, "/tags", nil, &tags)
	return tags.Tags, err
}
