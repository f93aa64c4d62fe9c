package translate

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/aplan/internal/artifact"
)

// Translator converts one source file into an artifact tree.
type Translator interface {
	Translate(ctx context.Context, sourceFile string) (artifact.Tree, error)
}

// TranslatorFunc adapts an ordinary function to the Translator interface.
type TranslatorFunc func(ctx context.Context, sourceFile string) (artifact.Tree, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, sourceFile string) (artifact.Tree, error) {
	return f(ctx, sourceFile)
}

// Registry maps variants to translators.
// Registration happens at configuration time; Resolve is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	translators map[Variant]Translator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{translators: make(map[Variant]Translator)}
}

// Register binds t to v. Registering the same variant twice is an error.
func (r *Registry) Register(v Variant, t Translator) error {
	if !v.Valid() {
		return &UnsupportedVariantError{Variant: v}
	}
	if t == nil {
		return fmt.Errorf("register %s: translator is nil", v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.translators[v]; exists {
		return fmt.Errorf("register %s: translator already registered", v)
	}
	r.translators[v] = t
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for static wiring in main and tests.
func (r *Registry) MustRegister(v Variant, t Translator) {
	if err := r.Register(v, t); err != nil {
		panic(err)
	}
}

// Resolve returns the translator registered for v.
func (r *Registry) Resolve(v Variant) (Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.translators[v]
	if !ok {
		return nil, &UnsupportedVariantError{Variant: v}
	}
	return t, nil
}

// Registered lists the variants with a translator, in declaration order.
func (r *Registry) Registered() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Variant
	for _, v := range Variants {
		if _, ok := r.translators[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
