package memory

import (
	"context"
	"sync"

	"github.com/stocksense/stocksense/internal/domain"
)

// PolicyInputsRepository holds product and supplier reference data in
// memory.
type PolicyInputsRepository struct {
	mu     sync.RWMutex
	inputs map[string]domain.ItemPolicyInputs
}

func NewPolicyInputsRepository() *PolicyInputsRepository {
	return &PolicyInputsRepository{
		inputs: make(map[string]domain.ItemPolicyInputs),
	}
}

// AddInputs registers reference data for one item.
func (r *PolicyInputsRepository) AddInputs(in domain.ItemPolicyInputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[in.ItemID] = in
}

// FetchPolicyInputs returns inputs for the known items among itemIDs.
// Unknown items are simply absent; callers apply the documented defaults.
func (r *PolicyInputsRepository) FetchPolicyInputs(ctx context.Context, itemIDs []string) (map[string]domain.ItemPolicyInputs, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.ItemPolicyInputs)
	for _, id := range itemIDs {
		if in, ok := r.inputs[id]; ok {
			out[id] = in
		}
	}
	return out, nil
}
