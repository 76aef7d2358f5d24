package types

import (
	"fmt"
)

// Registry maps logical chain names to chain clients in a fixed order.
type Registry struct {
	order      []string
	chains     map[string]SourceChain
	settlement string
}

// NewRegistry builds a registry. Order of chains is the scan order used by the
// position locator. The settlement chain must be a registered vault chain.
func NewRegistry(chains []SourceChain, settlement string) (*Registry, error) {
	r := &Registry{
		chains:     make(map[string]SourceChain, len(chains)),
		settlement: settlement,
	}
	domains := make(map[Domain]string, len(chains))
	for _, c := range chains {
		name := c.Name()
		if _, dup := r.chains[name]; dup {
			return nil, fmt.Errorf("chain %s registered twice", name)
		}
		if other, dup := domains[c.Domain()]; dup {
			return nil, fmt.Errorf("chains %s and %s share domain %d", other, name, c.Domain())
		}
		domains[c.Domain()] = name
		r.chains[name] = c
		r.order = append(r.order, name)
	}
	if _, err := r.Vault(settlement); err != nil {
		return nil, fmt.Errorf("settlement chain: %w", err)
	}
	return r, nil
}

// Lookup returns the chain registered under name.
func (r *Registry) Lookup(name string) (SourceChain, error) {
	c, ok := r.chains[name]
	if !ok {
		return nil, NewValidationError("chain %q is not configured", name)
	}
	return c, nil
}

// Vault returns the vault chain registered under name.
func (r *Registry) Vault(name string) (VaultChain, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	v, ok := c.(VaultChain)
	if !ok {
		return nil, NewValidationError("chain %q has no vault manager", name)
	}
	return v, nil
}

// Domain returns the CCTP domain of a registered chain.
func (r *Registry) Domain(name string) (Domain, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return c.Domain(), nil
}

// VaultChains returns the vault chains in registry order.
func (r *Registry) VaultChains() []VaultChain {
	var out []VaultChain
	for _, name := range r.order {
		if v, ok := r.chains[name].(VaultChain); ok {
			out = append(out, v)
		}
	}
	return out
}

// Settlement returns the fixed destination chain for withdraws.
func (r *Registry) Settlement() VaultChain {
	v, _ := r.Vault(r.settlement)
	return v
}

// Names returns all registered chain names in order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
