package stateformat

import (
	"slices"
	"sync"
)

// Schemes is a registry of named SchemeOptions. Options for a name are built
// lazily on the first Get: every Configure callback for the name runs in
// registration order, then every PostConfigurer. The result is cached until
// Invalidate.
type Schemes struct {
	mu             sync.Mutex
	configure      map[string][]func(*SchemeOptions)
	postConfigure  []PostConfigurer
	built          map[string]*SchemeOptions
	hasInitializer map[*Service]bool
}

// NewSchemes returns an empty registry.
func NewSchemes() *Schemes {
	return &Schemes{
		configure:      map[string][]func(*SchemeOptions){},
		built:          map[string]*SchemeOptions{},
		hasInitializer: map[*Service]bool{},
	}
}

// Configure registers fn for name and drops any cached options for it.
func (s *Schemes) Configure(name string, fn func(*SchemeOptions)) error {
	if err := validSchemeName(name); err != nil {
		return err
	}
	if fn == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure[name] = append(s.configure[name], fn)
	delete(s.built, name)
	return nil
}

// PostConfigure registers p for every name. Cached options are dropped so the
// next Get sees it.
func (s *Schemes) PostConfigure(p PostConfigurer) {
	if p == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.postConfigure = append(s.postConfigure, p)
	clear(s.built)
}

// Get returns the built options for name. The same pointer is returned until
// the name is invalidated or reconfigured. Callbacks run under the registry
// lock and must not call back into s.
func (s *Schemes) Get(name string) (*SchemeOptions, error) {
	if err := validSchemeName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts, ok := s.built[name]; ok {
		return opts, nil
	}

	opts := &SchemeOptions{}
	for _, fn := range s.configure[name] {
		fn(opts)
	}
	for _, p := range s.postConfigure {
		p.PostConfigure(name, opts)
	}
	s.built[name] = opts
	return opts, nil
}

// Invalidate drops the cached options for name.
func (s *Schemes) Invalidate(name string) {
	s.mu.Lock()
	delete(s.built, name)
	s.mu.Unlock()
}

// Names lists every configured name, sorted.
func (s *Schemes) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.configure))
	for name := range s.configure {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// addInitializerOnce registers svc's Initializer unless it already is.
func (s *Schemes) addInitializerOnce(svc *Service) {
	s.mu.Lock()
	if s.hasInitializer[svc] {
		s.mu.Unlock()
		return
	}
	s.hasInitializer[svc] = true
	s.postConfigure = append(s.postConfigure, svc.Initializer())
	clear(s.built)
	s.mu.Unlock()
}
