// Package workspace implements the workspace resolver (spec §4.2,
// C2): derives and normalizes a workspace identifier for tagging
// Memory Points, following a priority chain with a TTL cache.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// Source records which step of the priority chain produced a
// resolution, for diagnostics.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourceCache     Source = "cache"
	SourceManifest  Source = "manifest"
	SourceDirectory Source = "directory"
	SourceDefault   Source = "default"
)

// Resolution is the outcome of a Resolve call.
type Resolution struct {
	// Workspace is the normalized (lowercase) workspace value, or
	// empty for "no workspace".
	Workspace string
	Source    Source
}

// Manifest is the minimal shape of a nearest-ancestor package
// manifest file consulted in step 3 of the priority chain. Real
// projects in this corpus's domain use a `module.yaml`/`package.yaml`
// with a `name:` field, the same shape the teacher's MCP client
// config loader (`pkg/service/mcp/client.go`) parses with yaml.v3.
type Manifest struct {
	Name string `yaml:"name"`
}

var manifestFilenames = []string{"module.yaml", "package.yaml"}

// Resolver resolves workspace names from explicit input, a fresh
// cache, an ancestor manifest walk, the working directory, or a
// configured default.
type Resolver struct {
	defaultWorkspace string
	cacheTTL         time.Duration
	cwd              func() (string, error)

	mu        sync.Mutex
	cached    *Resolution
	cachedAt  time.Time
}

// New creates a Resolver. defaultWorkspace may be empty (meaning no
// fallback workspace). cacheTTL of zero disables caching.
func New(defaultWorkspace string, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		defaultWorkspace: defaultWorkspace,
		cacheTTL:         cacheTTL,
		cwd:              os.Getwd,
	}
}

// Clear invalidates the cached resolution.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.cachedAt = time.Time{}
}

// ExplicitNone is a sentinel passed to Resolve to mean "the caller
// explicitly requested no workspace", distinguishing that case from
// "the caller didn't specify one".
const ExplicitNone = "\x00none"

// Resolve walks the priority chain described in spec §4.2.
//
//  1. explicit argument (string or ExplicitNone)
//  2. fresh cache entry
//  3. nearest ancestor manifest (up to 5 parents)
//  4. current directory basename
//  5. configured default
func (r *Resolver) Resolve(ctx context.Context, explicit string) (*Resolution, error) {
	if explicit == ExplicitNone {
		return &Resolution{Workspace: "", Source: SourceExplicit}, nil
	}
	if explicit != "" {
		if err := model.ValidateWorkspace(explicit); err != nil {
			return nil, err
		}
		res := &Resolution{Workspace: model.NormalizeWorkspace(explicit), Source: SourceExplicit}
		r.store(res)
		return res, nil
	}

	if cached := r.fromCache(); cached != nil {
		return cached, nil
	}

	if res := r.fromManifest(ctx); res != nil {
		r.store(res)
		return res, nil
	}

	if res := r.fromDirectory(); res != nil {
		r.store(res)
		return res, nil
	}

	res := &Resolution{Workspace: model.NormalizeWorkspace(r.defaultWorkspace), Source: SourceDefault}
	if r.defaultWorkspace != "" && model.ValidateWorkspace(r.defaultWorkspace) != nil {
		res.Workspace = ""
	}
	r.store(res)
	return res, nil
}

func (r *Resolver) fromCache() *Resolution {
	if r.cacheTTL <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return nil
	}
	if time.Since(r.cachedAt) > r.cacheTTL {
		return nil
	}
	cached := *r.cached
	cached.Source = SourceCache
	return &cached
}

func (r *Resolver) store(res *Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.cached = &cp
	r.cachedAt = time.Now()
}

var normalizeDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
var repeatedDash = regexp.MustCompile(`-{2,}`)

// normalizeManifestName applies the manifest-name normalization rule
// of spec §4.2 step 3: strip a `@scope/` prefix, strip a leading
// `mcp-` prefix, replace disallowed characters with `-`, collapse
// repeats, trim leading/trailing `-`.
func normalizeManifestName(name string) string {
	if idx := strings.Index(name, "/"); idx >= 0 && strings.HasPrefix(name, "@") {
		name = name[idx+1:]
	}
	name = strings.TrimPrefix(name, "mcp-")
	name = normalizeDisallowed.ReplaceAllString(name, "-")
	name = repeatedDash.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	return name
}

func (r *Resolver) fromManifest(ctx context.Context) *Resolution {
	dir, err := r.cwd()
	if err != nil {
		return nil
	}

	logger := logging.From(ctx)
	for i := 0; i < 5; i++ {
		for _, fname := range manifestFilenames {
			path := filepath.Join(dir, fname)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var m Manifest
			if err := yaml.Unmarshal(data, &m); err != nil {
				logger.Debug("failed to parse workspace manifest", "path", path, "error", err)
				continue
			}
			if m.Name == "" {
				continue
			}
			normalized := normalizeManifestName(m.Name)
			if model.ValidateWorkspace(normalized) == nil && normalized != "" {
				return &Resolution{Workspace: model.NormalizeWorkspace(normalized), Source: SourceManifest}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}

func (r *Resolver) fromDirectory() *Resolution {
	dir, err := r.cwd()
	if err != nil {
		return nil
	}
	base := filepath.Base(dir)
	if model.ValidateWorkspace(base) == nil {
		return &Resolution{Workspace: model.NormalizeWorkspace(base), Source: SourceDirectory}
	}
	return nil
}
