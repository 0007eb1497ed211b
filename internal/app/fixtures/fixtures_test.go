package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsAreDeterministic(t *testing.T) {
	first := Products()
	second := Products()

	require.Len(t, first, 5)
	assert.Equal(t, first, second)
	assert.Equal(t, ProductID(1), first[0].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID)
}

func TestProductsAreNotShared(t *testing.T) {
	products := Products()
	products[0].Tags[0] = "changed"

	assert.NotEqual(t, "changed", Products()[0].Tags[0])
}

func TestProductByID(t *testing.T) {
	known := Products()[3]
	assert.Equal(t, known, ProductByID(known.ID))

	unknown := ProductByID("sock-42")
	assert.Equal(t, "sock-42", unknown.ID)
	assert.Equal(t, Products()[0].Name, unknown.Name)
}

func TestTagsAreDistinct(t *testing.T) {
	tags := Tags()

	seen := map[string]bool{}
	for _, tag := range tags {
		assert.False(t, seen[tag], "duplicate tag %s", tag)
		seen[tag] = true
	}
	assert.Contains(t, tags, "formal")
}

func TestEmptyCartHasNoItems(t *testing.T) {
	cart := EmptyCart(CustomerID)

	assert.Equal(t, CustomerID, cart.CustomerID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestDeclinedPaymentRequest(t *testing.T) {
	assert.Equal(t, ApprovedCardNumber, NewPaymentRequest(10).Card.LongNum)
	assert.Equal(t, DeclinedCardNumber, DeclinedPaymentRequest(10).Card.LongNum)
}
