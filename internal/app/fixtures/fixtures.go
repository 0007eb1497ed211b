// Package fixtures builds the deterministic domain entities used to seed mock
// providers and to describe consumer expectations.
package fixtures

import (
	"strconv"

	"github.com/google/uuid"
)

const (
	CustomerID         = "customer-12345"
	ApprovedCardNumber = "4111111111111111"
	DeclinedCardNumber = "4000000000000002"
	DeclinedMessage    = "Card declined by issuer"
	AuthorisedMessage  = "Payment authorised"
	DeclineOverAmount  = 105.0
	UnknownProductID   = "00000000-0000-0000-0000-000000000000"
)

var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/form3tech-oss/pact-harness/catalogue"))

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    []string `json:"imageUrl"`
	Price       float64  `json:"price"`
	Count       int      `json:"count"`
	Tags        []string `json:"tag"`
}

type CartItem struct {
	ItemID    string  `json:"itemId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type Cart struct {
	CustomerID string     `json:"customerId"`
	Items      []CartItem `json:"items"`
}

type Card struct {
	LongNum string `json:"longNum"`
	Expires string `json:"expires"`
	CCV     string `json:"ccv"`
}

type PaymentRequest struct {
	CustomerID string  `json:"customerId"`
	Amount     float64 `json:"amount"`
	Card       Card    `json:"card"`
}

type PaymentAuthorisation struct {
	Authorised bool   `json:"authorised"`
	Message    string `json:"message"`
}

// ProductID derives a stable product id from its position in the catalogue.
func ProductID(n int) string {
	return uuid.NewSHA1(productNamespace, []byte(strconv.Itoa(n))).String()
}

var catalogue = []struct {
	name        string
	description string
	price       float64
	count       int
	tags        []string
}{
	{"Holy", "Socks fit for a Messiah.", 99.99, 1, []string{"action", "magic"}},
	{"Colourful", "A colourful pair of socks.", 18, 438, []string{"brown", "blue"}},
	{"SuperSport XL", "Ready for action.", 15, 820, []string{"sport", "formal", "black"}},
	{"Figueroa", "Enough said.", 14, 808, []string{"green", "formal", "blue"}},
	{"Crossed", "A mature sock, crossed.", 17.32, 738, []string{"blue", "action", "red", "formal"}},
}

// Products returns the five catalogue products, always in the same order.
func Products() []Product {
	products := make([]Product, 0, len(catalogue))
	for i, c := range catalogue {
		id := ProductID(i + 1)
		products = append(products, Product{
			ID:          id,
			Name:        c.name,
			Description: c.description,
			ImageURL:    []string{"/catalogue/images/" + id + ".jpg"},
			Price:       c.price,
			Count:       c.count,
			Tags:        append([]string(nil), c.tags...),
		})
	}
	return products
}

// ProductByID returns the catalogue product with the given id, or a new product
// with that id and the first product's attributes when it is not in the catalogue.
func ProductByID(id string) Product {
	products := Products()
	for _, p := range products {
		if p.ID == id {
			return p
		}
	}
	p := products[0]
	p.ID = id
	p.ImageURL = []string{"/catalogue/images/" + id + ".jpg"}
	return p
}

func Tags() []string {
	seen := map[string]bool{}
	var tags []string
	for _, p := range Products() {
		for _, tag := range p.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func NewCartItem(productID string, quantity int, unitPrice float64) CartItem {
	return CartItem{ItemID: productID, Quantity: quantity, UnitPrice: unitPrice}
}

func CartItems() []CartItem {
	products := Products()
	return []CartItem{
		NewCartItem(products[0].ID, 1, products[0].Price),
		NewCartItem(products[2].ID, 2, products[2].Price),
	}
}

func NewCart(customerID string, items ...CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	return Cart{CustomerID: customerID, Items: items}
}

func EmptyCart(customerID string) Cart {
	return NewCart(customerID)
}

func NewPaymentRequest(amount float64) PaymentRequest {
	return PaymentRequest{
		CustomerID: CustomerID,
		Amount:     amount,
		Card: Card{
			LongNum: ApprovedCardNumber,
			Expires: "08/29",
			CCV:     "958",
		},
	}
}

func DeclinedPaymentRequest(amount float64) PaymentRequest {
	p := NewPaymentRequest(amount)
	p.Card.LongNum = DeclinedCardNumber
	return p
}
