package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
)

// CatalogueStore holds the products served by one catalogue provider.
type CatalogueStore struct {
	mu       sync.RWMutex
	order    []string
	products map[string]fixtures.Product
}

func NewCatalogueStore() *CatalogueStore {
	return &CatalogueStore{products: map[string]fixtures.Product{}}
}

func (s *CatalogueStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.products = map[string]fixtures.Product{}
}

// Seed stores products, replacing any product with the same id.
func (s *CatalogueStore) Seed(products ...fixtures.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if _, exists := s.products[p.ID]; !exists {
			s.order = append(s.order, p.ID)
		}
		s.products[p.ID] = p
	}
}

func (s *CatalogueStore) Get(id string) (fixtures.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// List returns products in seeding order, restricted to products carrying any of tags.
func (s *CatalogueStore) List(tags ...string) []fixtures.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]fixtures.Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if hasAnyTag(p, tags) {
			products = append(products, p)
		}
	}
	return products
}

func (s *CatalogueStore) Size(tags ...string) int {
	return len(s.List(tags...))
}

func (s *CatalogueStore) Tags() []string {
	seen := map[string]bool{}
	tags := []string{}
	for _, p := range s.List() {
		for _, tag := range p.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func hasAnyTag(p fixtures.Product, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, tag := range p.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// CartStore holds carts keyed by customer id.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string]fixtures.Cart
}

func NewCartStore() *CartStore {
	return &CartStore{carts: map[string]fixtures.Cart{}}
}

func (s *CartStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts = map[string]fixtures.Cart{}
}

// Seed stores cart, replacing any existing cart of the same customer.
func (s *CartStore) Seed(cart fixtures.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.CustomerID] = copyCart(cart)
}

func (s *CartStore) Get(customerID string) (fixtures.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[customerID]
	if !ok {
		return fixtures.Cart{}, false
	}
	return copyCart(cart), true
}

func (s *CartStore) List() []fixtures.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	carts := make([]fixtures.Cart, 0, len(s.carts))
	for _, cart := range s.carts {
		carts = append(carts, copyCart(cart))
	}
	sort.Slice(carts, func(i, j int) bool { return carts[i].CustomerID < carts[j].CustomerID })
	return carts
}

// AddItem adds item to the customer's cart, creating the cart when needed. Adding
// an item already in the cart increases its quantity.
func (s *CartStore) AddItem(customerID string, item fixtures.CartItem) fixtures.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[customerID]
	if !ok {
		cart = fixtures.NewCart(customerID)
	}
	for i, existing := range cart.Items {
		if existing.ItemID == item.ItemID {
			cart.Items[i].Quantity += item.Quantity
			s.carts[customerID] = cart
			return cart.Items[i]
		}
	}
	cart.Items = append(cart.Items, item)
	s.carts[customerID] = cart
	return item
}

func (s *CartStore) UpdateItem(customerID string, item fixtures.CartItem) (fixtures.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[customerID]
	if !ok {
		return fixtures.CartItem{}, fmt.Errorf("cart for customer %s not found", customerID)
	}
	for i, existing := range cart.Items {
		if existing.ItemID == item.ItemID {
			cart.Items[i].Quantity = item.Quantity
			if item.UnitPrice > 0 {
				cart.Items[i].UnitPrice = item.UnitPrice
			}
			s.carts[customerID] = cart
			return cart.Items[i], nil
		}
	}
	return fixtures.CartItem{}, fmt.Errorf("item %s not found in cart for customer %s", item.ItemID, customerID)
}

func (s *CartStore) RemoveItem(customerID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[customerID]
	if !ok {
		return fmt.Errorf("cart for customer %s not found", customerID)
	}
	for i, existing := range cart.Items {
		if existing.ItemID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			s.carts[customerID] = cart
			return nil
		}
	}
	return fmt.Errorf("item %s not found in cart for customer %s", itemID, customerID)
}

func (s *CartStore) Delete(customerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[customerID]
	delete(s.carts, customerID)
	return ok
}

func copyCart(cart fixtures.Cart) fixtures.Cart {
	items := make([]fixtures.CartItem, len(cart.Items))
	copy(items, cart.Items)
	return fixtures.Cart{CustomerID: cart.CustomerID, Items: items}
}

// PaymentSnapshot is a copy of the payment provider's flags.
type PaymentSnapshot struct {
	Unavailable       bool
	DeclineAll        bool
	DeclinedCards     []string
	DeclineOverAmount float64
}

// PaymentState decides how payment authorisations are answered.
type PaymentState struct {
	mu                sync.RWMutex
	unavailable       bool
	declineAll        bool
	declinedCards     map[string]bool
	declineOverAmount float64
}

func NewPaymentState() *PaymentState {
	s := &PaymentState{}
	s.Reset()
	return s
}

// Reset restores the defaults: available, and only the designated card declined.
func (s *PaymentState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = false
	s.declineAll = false
	s.declinedCards = map[string]bool{fixtures.DeclinedCardNumber: true}
	s.declineOverAmount = fixtures.DeclineOverAmount
}

func (s *PaymentState) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

func (s *PaymentState) SetDeclineAll(declineAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declineAll = declineAll
}

func (s *PaymentState) DeclineCard(cardNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declinedCards[cardNumber] = true
}

func (s *PaymentState) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.unavailable
}

func (s *PaymentState) Authorise(req fixtures.PaymentRequest) fixtures.PaymentAuthorisation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.declineAll:
		return fixtures.PaymentAuthorisation{Authorised: false, Message: "Payment declined"}
	case s.declinedCards[req.Card.LongNum]:
		return fixtures.PaymentAuthorisation{Authorised: false, Message: fixtures.DeclinedMessage}
	case req.Amount > s.declineOverAmount:
		return fixtures.PaymentAuthorisation{
			Authorised: false,
			Message:    fmt.Sprintf("Payment declined: amount exceeds %.2f", s.declineOverAmount),
		}
	}
	return fixtures.PaymentAuthorisation{Authorised: true, Message: fixtures.AuthorisedMessage}
}

func (s *PaymentState) Snapshot() PaymentSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := make([]string, 0, len(s.declinedCards))
	for card := range s.declinedCards {
		cards = append(cards, card)
	}
	sort.Strings(cards)
	return PaymentSnapshot{
		Unavailable:       s.unavailable,
		DeclineAll:        s.declineAll,
		DeclinedCards:     cards,
		DeclineOverAmount: s.declineOverAmount,
	}
}
