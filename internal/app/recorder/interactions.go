package recorder

import (
	"sort"
	"sync"
)

// Interactions is the set of interactions registered with a mock provider, keyed by description.
type Interactions struct {
	interactions sync.Map
}

func (i *Interactions) Store(interaction *interaction) {
	i.interactions.Store(interaction.Description, interaction)
}

func (i *Interactions) Clear() {
	i.interactions.Range(func(k, _ interface{}) bool {
		i.interactions.Delete(k)
		return true
	})
}

func (i *Interactions) Load(key string) (*interaction, bool) {
	result, ok := i.interactions.Load(key)
	if !ok {
		return nil, false
	}
	return result.(*interaction), true
}

// FindAll returns the interactions registered for path and method, in registration order.
func (i *Interactions) FindAll(path, method string) ([]*interaction, bool) {
	var result []*interaction
	for _, interaction := range i.All() {
		if interaction.Match(path, method) {
			result = append(result, interaction)
		}
	}
	return result, len(result) > 0
}

// All returns every interaction in registration order.
func (i *Interactions) All() []*interaction {
	var interactions []*interaction
	i.interactions.Range(func(_, v interface{}) bool {
		interactions = append(interactions, v.(*interaction))
		return true
	})
	sort.Slice(interactions, func(a, b int) bool { return interactions[a].order < interactions[b].order })
	return interactions
}

func (i *Interactions) AllHaveRequests() bool {
	result := true
	i.interactions.Range(func(_, v interface{}) bool {
		if !v.(*interaction).HasRequests(1) {
			result = false
			return false
		}
		return true
	})
	return result
}
