package frontier

import (
	"sync"

	"github.com/deidaraiorek/siteindex/internal/parser"
)

// VisitedSet records the pages a crawl has claimed. URLs that differ only in
// scheme, a leading "www." or normalization map to the same page. It is safe
// for concurrent use.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewVisitedSet(urls ...string) *VisitedSet {
	v := &VisitedSet{seen: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		v.seen[pageKey(u)] = struct{}{}
	}
	return v
}

// MarkVisited claims the page of url and reports whether it was unclaimed.
func (v *VisitedSet) MarkVisited(url string) bool {
	key := pageKey(url)

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

func pageKey(url string) string {
	return parser.HostKey(url) + parser.PathOf(url)
}
