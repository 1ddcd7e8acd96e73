package josex

import (
	"fmt"
	"sort"
	"sync"
)

// Strategy is the provider strategy context. One provider is active (mints
// every new token) and at most one is previous (still accepted during a
// switch-over). All state transitions happen under the write lock, so
// readers always observe a consistent active/previous pair.
type Strategy struct {
	mu        sync.RWMutex
	providers map[string]Provider
	active    Provider
	previous  Provider
}

// NewStrategy registers the given providers and activates the named one.
// There is no previous provider until the first Switch.
func NewStrategy(activeName string, providers ...Provider) (*Strategy, error) {
	s := &Strategy{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}

	active, ok := s.providers[activeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, activeName)
	}
	s.active = active

	return s, nil
}

// Active returns the provider that mints new tokens.
func (s *Strategy) Active() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Previous returns the demoted provider, or nil if no switch has happened.
func (s *Strategy) Previous() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// Names lists the registered provider names, sorted for stable output.
func (s *Strategy) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Switch promotes the named provider to active and demotes the current
// active to previous. An unknown name returns ErrUnknownProvider and leaves
// the state untouched.
func (s *Strategy) Switch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.providers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	s.previous = s.active
	s.active = next
	return nil
}

// Verify resolves a token against the active provider first, then the
// previous one. The previous fallback is what keeps in-flight tokens valid
// across a provider switch. Both failing collapses to ErrInvalidToken.
func (s *Strategy) Verify(token string) (Claims, Provider, error) {
	s.mu.RLock()
	active, previous := s.active, s.previous
	s.mu.RUnlock()

	if c, err := active.Verify(token); err == nil {
		return c, active, nil
	}

	if previous != nil {
		if c, err := previous.Verify(token); err == nil {
			return c, previous, nil
		}
	}

	return Claims{}, nil, ErrInvalidToken
}

// LastOfKind returns the most recently active provider of the given kind,
// checking the active slot before the previous one. Returns nil when
// neither slot matches.
func (s *Strategy) LastOfKind(k Kind) Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active != nil && s.active.Kind() == k {
		return s.active
	}
	if s.previous != nil && s.previous.Kind() == k {
		return s.previous
	}
	return nil
}
