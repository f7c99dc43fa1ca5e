package reconciler

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostconfd/internal/commit"
)

// Pass is one rebuild of one reconciler. Rebuild commits every artifact
// through it so the runner knows whether anything changed and which paths
// need relabeling. A Pass is safe for concurrent use by the goroutines of a
// single rebuild.
type Pass struct {
	ID         string
	Reconciler string
	Started    time.Time

	committer *commit.Committer

	mu       sync.Mutex
	changed  []string
	relabel  []string
	observed map[string]string
}

// NewPass starts a pass. Runners create passes; tests of reconcilers may
// create their own to call Rebuild directly.
func NewPass(reconciler string, committer *commit.Committer) *Pass {
	if committer == nil {
		committer = commit.New()
	}
	return &Pass{
		ID:         uuid.NewString(),
		Reconciler: reconciler,
		Started:    time.Now(),
		committer:  committer,
		observed:   make(map[string]string),
	}
}

// Commit applies a file artifact.
func (p *Pass) Commit(a commit.Artifact) (commit.Result, error) {
	res, err := p.committer.Apply(a)
	if res == commit.Changed {
		p.record(a.Path, !a.Absent)
	}
	return res, err
}

// Symlink points path at target.
func (p *Pass) Symlink(path, target string) (commit.Result, error) {
	res, err := p.committer.Symlink(path, target)
	if res == commit.Changed {
		p.record(path, true)
	}
	return res, err
}

// EnsureDirectory creates or corrects a directory.
func (p *Pass) EnsureDirectory(path string, uid, gid int, mode os.FileMode) (commit.Result, error) {
	res, err := p.committer.EnsureDirectory(path, uid, gid, mode)
	if res == commit.Changed {
		p.record(path, true)
	}
	return res, err
}

// Trim deletes entries of dir that are no longer desired and returns their
// names.
func (p *Pass) Trim(dir string, keep []string, opts commit.TrimOptions) ([]string, error) {
	removed, err := p.committer.TrimDirectory(dir, keep, opts)
	for _, name := range removed {
		p.record(filepath.Join(dir, name), false)
	}
	return removed, err
}

// MarkChanged records a change made outside the committer, such as a
// package installation, so the pass counts as changed.
func (p *Pass) MarkChanged(what string) {
	p.record(what, false)
}

// Observe records the version token seen for key in this pass's snapshot.
func (p *Pass) Observe(key, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observed[key] = token
}

// Observed returns the tokens recorded with Observe.
func (p *Pass) Observed() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.observed))
	for k, v := range p.observed {
		out[k] = v
	}
	return out
}

// Changed reports whether anything was written or removed so far.
func (p *Pass) Changed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.changed) > 0
}

// ChangedPaths returns what changed, sorted.
func (p *Pass) ChangedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := slices.Clone(p.changed)
	sort.Strings(out)
	return out
}

// RelabelPaths returns the written paths awaiting relabeling, sorted.
func (p *Pass) RelabelPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := slices.Clone(p.relabel)
	sort.Strings(out)
	return out
}

func (p *Pass) record(path string, relabel bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.changed, path) {
		p.changed = append(p.changed, path)
	}
	if relabel && !slices.Contains(p.relabel, path) {
		p.relabel = append(p.relabel, path)
	}
}
