package provider

import (
	"sync"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
)

// recorder collects delivered snapshots
type recorder struct {
	mu        sync.Mutex
	snapshots []entities.ProviderSnapshot
}

func (r *recorder) record(snapshot entities.ProviderSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() entities.ProviderSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return entities.ProviderSnapshot{}
	}
	return r.snapshots[len(r.snapshots)-1]
}

func ids(snapshot entities.ProviderSnapshot) []string {
	out := make([]string, 0, len(snapshot.Slides))
	for _, s := range snapshot.Slides {
		out = append(out, s.ID)
	}
	return out
}
