package universe

import (
	"github.com/wonny/trendhealth/internal/contracts"
)

// Registry is the validated, ordered set of universes
// ⭐ SSOT: 유니버스 정의는 이 Registry 를 통해서만 조회
type Registry struct {
	universes []*contracts.Universe
	byID      map[string]*contracts.Universe
	hash      string
}

func newRegistry(f File, hash string) *Registry {
	r := &Registry{
		universes: make([]*contracts.Universe, 0, len(f.Universes)),
		byID:      make(map[string]*contracts.Universe, len(f.Universes)),
		hash:      hash,
	}
	for i := range f.Universes {
		u := &f.Universes[i]
		r.universes = append(r.universes, u)
		r.byID[u.ID] = u
	}
	return r
}

// All returns every universe in file order
func (r *Registry) All() []*contracts.Universe {
	return r.universes
}

// Get returns the universe with id
func (r *Registry) Get(id string) (*contracts.Universe, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// Hash returns the registry content hash
func (r *Registry) Hash() string {
	return r.hash
}

// ProviderSymbols returns the distinct provider symbols across all universes, first-seen order
func (r *Registry) ProviderSymbols() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, u := range r.universes {
		for _, item := range u.Items {
			s := item.Symbol()
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
