package integrations

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrIntegrationExists  = errors.New("integration already exists")
	ErrIntegrationNil     = errors.New("integration is nil")
	ErrUnknownIntegration = errors.New("unknown integration")
	ErrInvalidMetadata    = errors.New("invalid integration metadata")
)

// Registry stores integrations by stable identifier.
type Registry struct {
	items map[string]Integration
}

// NewRegistry creates an empty integration registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Integration)}
}

// Defaults registers the built-in integrations with volumes under baseDir.
func Defaults(baseDir string) *Registry {
	r := NewRegistry()
	for _, it := range []Integration{
		NewChisel(baseDir),
		NewOccam(baseDir),
		NewRazor(baseDir),
		NewPiecewise(baseDir),
	} {
		if err := r.Register(it); err != nil {
			panic(fmt.Sprintf("built-in integration %s: %v", it.Metadata().ID, err))
		}
	}
	return r
}

// ValidateMetadata checks required metadata fields and id format.
func ValidateMetadata(meta Metadata) error {
	id := strings.TrimSpace(meta.ID)
	name := strings.TrimSpace(meta.Name)
	if id == "" || name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidMetadata)
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	return nil
}

// Register adds an integration to the registry.
func (r *Registry) Register(it Integration) error {
	if it == nil {
		return ErrIntegrationNil
	}

	meta := it.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	if _, ok := r.items[meta.ID]; ok {
		return ErrIntegrationExists
	}
	r.items[meta.ID] = it
	return nil
}

// Resolve returns an integration by id.
func (r *Registry) Resolve(id string) (Integration, bool) {
	it, ok := r.items[id]
	return it, ok
}

// Apply layers o over the integration registered as id, or registers a new
// custom integration under id when none exists. baseDir seeds the default
// volume of new integrations.
func (r *Registry) Apply(baseDir, id string, o Overrides) error {
	id = strings.TrimSpace(id)
	current, ok := r.items[id]
	if !ok {
		b := newBase(baseDir, Metadata{ID: id, Name: id, Description: "configured integration"}, "pdb-"+id)
		b.apply(o)
		c, err := newCustom(b, o, nil)
		if err != nil {
			return fmt.Errorf("integration %s: %w", id, err)
		}
		return r.Register(c)
	}

	if target, ok := current.(interface{ apply(Overrides) }); ok {
		target.apply(o)
	}
	if !o.replacesBehaviour() {
		return nil
	}

	var b base
	switch v := current.(type) {
	case *Custom:
		b = v.base
	default:
		meta := current.Metadata()
		b = base{meta: meta, container: current.Container(), volume: current.Volume()}
	}
	c, err := newCustom(b, o, current)
	if err != nil {
		return fmt.Errorf("integration %s: %w", id, err)
	}
	r.items[id] = c
	return nil
}

// List returns integrations in deterministic id order.
func (r *Registry) List() []Integration {
	list := make([]Integration, 0, len(r.items))
	for _, it := range r.items {
		list = append(list, it)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Metadata().ID < list[j].Metadata().ID
	})
	return list
}

// Lookup resolves id or returns ErrUnknownIntegration.
func (r *Registry) Lookup(id string) (Integration, error) {
	it, ok := r.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegration, id)
	}
	return it, nil
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
