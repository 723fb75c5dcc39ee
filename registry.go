package subdoc

import (
	"sort"
	"sync"
)

type reuseKey struct {
	host     DocumentID
	language string
}

// Registry maps host documents to their active Link, at most one each, and
// remembers named subdocuments that may be reused for a host and language.
type Registry struct {
	mu       sync.Mutex
	links    map[DocumentID]*Link
	reusable map[reuseKey]DocumentID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		links:    make(map[DocumentID]*Link),
		reusable: make(map[reuseKey]DocumentID),
	}
}

// Get returns the active link of a host document.
func (r *Registry) Get(host DocumentID) (*Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[host]
	return l, ok
}

// Set installs l as the link of host, replacing any previous entry.
func (r *Registry) Set(host DocumentID, l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[host] = l
}

// Delete removes the link of host.
func (r *Registry) Delete(host DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, host)
}

// deleteLink removes the entry for host only if it still refers to l.
func (r *Registry) deleteLink(host DocumentID, l *Link) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links[host] != l {
		return false
	}
	delete(r.links, host)
	return true
}

// Values returns every registered link ordered by host document.
func (r *Registry) Values() []*Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	links := make([]*Link, 0, len(r.links))
	for _, l := range r.links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].host < links[j].host })
	return links
}

// Len returns the number of registered links.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// HostOf returns the host document whose link currently owns sub.
func (r *Registry) HostOf(sub DocumentID) (DocumentID, bool) {
	for _, l := range r.Values() {
		if l.Sub() == sub {
			return l.host, true
		}
	}
	return "", false
}

// Remember records sub as the reusable subdocument for host and language.
func (r *Registry) Remember(host DocumentID, language string, sub DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reusable[reuseKey{host, language}] = sub
}

// Reusable returns the subdocument remembered for host and language.
func (r *Registry) Reusable(host DocumentID, language string) (DocumentID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.reusable[reuseKey{host, language}]
	return sub, ok
}

// Forget drops every reuse entry naming doc as host or subdocument.
func (r *Registry) Forget(doc DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, sub := range r.reusable {
		if sub == doc || k.host == doc {
			delete(r.reusable, k)
		}
	}
}
