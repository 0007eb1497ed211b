package recorder

import (
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
)

// InteractionBuilder declares one expected interaction:
//
//	mock.AddInteraction().
//		Given("cart exists for customer customer-12345").
//		UponReceiving("a request for the cart").
//		WithRequest(contract.Request{...}).
//		WillRespondWith(contract.Response{...})
//
// The interaction is registered with the mock provider once WillRespondWith is called.
type InteractionBuilder struct {
	mock        *MockProvider
	interaction contract.Interaction
	registered  bool
}

func (b *InteractionBuilder) Given(state string) *InteractionBuilder {
	b.interaction.ProviderState = state
	return b
}

func (b *InteractionBuilder) UponReceiving(description string) *InteractionBuilder {
	b.interaction.Description = description
	return b
}

func (b *InteractionBuilder) WithRequest(request contract.Request) *InteractionBuilder {
	b.interaction.Request = request
	return b
}

func (b *InteractionBuilder) WillRespondWith(response contract.Response) *InteractionBuilder {
	b.interaction.Response = response
	b.mock.register(b)
	return b
}

// Interaction returns the declaration as built so far.
func (b *InteractionBuilder) Interaction() contract.Interaction {
	return b.interaction
}
