package identity

import (
	"sync"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Provider is the external identity provider. The core never checks
// credentials; it only asks who is signed in.
type Provider interface {
	CurrentPrincipal() (schema.Principal, bool)
	SignOut()
}

// StaticProvider holds a fixed principal until signed out. The CLI uses it
// with the principal from its flags.
type StaticProvider struct {
	mu        sync.RWMutex
	principal *schema.Principal
}

// NewStaticProvider signs p in.
func NewStaticProvider(p schema.Principal) *StaticProvider {
	return &StaticProvider{principal: &p}
}

func (s *StaticProvider) CurrentPrincipal() (schema.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil || s.principal.ID == "" {
		return schema.Principal{}, false
	}
	return *s.principal, true
}

func (s *StaticProvider) SignOut() {
	s.mu.Lock()
	s.principal = nil
	s.mu.Unlock()
}

// Session resolves whoever the provider reports as signed in.
type Session struct {
	provider Provider
	resolver *Resolver
}

func NewSession(provider Provider, resolver *Resolver) *Session {
	return &Session{provider: provider, resolver: resolver}
}

// Current returns the local identity of the signed-in principal, or
// ErrUnauthenticated.
func (s *Session) Current() (schema.Identity, error) {
	p, ok := s.provider.CurrentPrincipal()
	if !ok {
		return schema.Identity{}, schema.ErrUnauthenticated
	}
	return s.resolver.Resolve(p)
}

func (s *Session) SignOut() {
	s.provider.SignOut()
}
