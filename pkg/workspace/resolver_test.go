package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/workspace"
	"github.com/m-mizutani/gt"
)

func TestResolveExplicitWins(t *testing.T) {
	r := workspace.New("fallback", time.Minute)

	res, err := r.Resolve(context.Background(), "MyProject")
	gt.NoError(t, err)
	gt.Equal(t, res.Workspace, "myproject")
	gt.Equal(t, res.Source, workspace.SourceExplicit)
}

func TestResolveExplicitNoneBypassesEverything(t *testing.T) {
	r := workspace.New("fallback", time.Minute)

	res, err := r.Resolve(context.Background(), workspace.ExplicitNone)
	gt.NoError(t, err)
	gt.Equal(t, res.Workspace, "")
	gt.Equal(t, res.Source, workspace.SourceExplicit)
}

func TestResolveRejectsReservedWorkspace(t *testing.T) {
	r := workspace.New("", 0)

	_, err := r.Resolve(context.Background(), "system")
	gt.Error(t, err)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "no.workspace")
	gt.NoError(t, os.MkdirAll(dir, 0o755))
	r := workspace.New("fallback-ws", 0)
	setCwd(r, dir)

	res, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, res.Workspace, "fallback-ws")
	gt.Equal(t, res.Source, workspace.SourceDefault)
}

func TestResolveFindsAncestorManifest(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	gt.NoError(t, os.MkdirAll(nested, 0o755))
	gt.NoError(t, os.WriteFile(filepath.Join(root, "module.yaml"), []byte("name: \"@scope/mcp-billing-tools\"\n"), 0o644))

	r := workspace.New("", 0)
	setCwd(r, nested)

	res, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, res.Workspace, "billing-tools")
	gt.Equal(t, res.Source, workspace.SourceManifest)
}

func TestResolveCachesWithinTTL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "no.workspace")
	gt.NoError(t, os.MkdirAll(dir, 0o755))
	r := workspace.New("fallback-ws", time.Hour)
	setCwd(r, dir)

	first, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, first.Source, workspace.SourceDefault)

	second, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, second.Workspace, first.Workspace)
	gt.Equal(t, second.Source, workspace.SourceCache)
}

func TestResolveClearInvalidatesCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "no.workspace")
	gt.NoError(t, os.MkdirAll(dir, 0o755))
	r := workspace.New("fallback-ws", time.Hour)
	setCwd(r, dir)

	_, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)

	r.Clear()

	res, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, res.Source, workspace.SourceDefault)
}

func TestResolveDirectoryBasename(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme-widgets")
	gt.NoError(t, os.MkdirAll(dir, 0o755))

	r := workspace.New("", 0)
	setCwd(r, dir)

	res, err := r.Resolve(context.Background(), "")
	gt.NoError(t, err)
	gt.Equal(t, res.Workspace, "acme-widgets")
	gt.Equal(t, res.Source, workspace.SourceDirectory)
}

// setCwd overrides the resolver's working-directory lookup for
// hermetic tests, using the package-private test hook.
func setCwd(r *workspace.Resolver, dir string) {
	workspace.SetCwdForTest(r, dir)
}
