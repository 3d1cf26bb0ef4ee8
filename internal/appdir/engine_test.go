package appdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/patrickelectric/linuxdeploy/internal/copyright"
	"github.com/patrickelectric/linuxdeploy/internal/desktopfile"
	"github.com/patrickelectric/linuxdeploy/internal/elfdep"
	"github.com/patrickelectric/linuxdeploy/internal/excludelist"
)

func newTestBundle(t *testing.T, oracle *fakeOracle, excludePatterns []string) (*Bundle, string) {
	t.Helper()
	root := t.TempDir()

	exclude, err := excludelist.NewFromPatterns(excludePatterns)
	require.NoError(t, err)

	b := NewWithCapabilities(root, oracle, exclude, copyright.New(root), newFakeRunner())
	return b, root
}

func TestDeployLibraryIsIdempotentAfterVisit(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfoo.so")
	mustWriteFile(t, lib, "lib")

	oracle := newFakeOracle()
	b, _ := newTestBundle(t, oracle, nil)

	require.NoError(t, b.DeployLibrary(lib, ""))
	sizeAfterFirst := len(b.planner.copyPlan)

	require.NoError(t, b.DeployLibrary(lib, ""))
	require.Equal(t, sizeAfterFirst, len(b.planner.copyPlan), "second deploy of a visited library must be a no-op")
}

func TestDeployLibraryDefaultDestinationAndRPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfoo.so")
	mustWriteFile(t, lib, "lib")

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)

	require.NoError(t, b.DeployLibrary(lib, ""))

	wantDest := filepath.Join(root, "usr", "lib", "libfoo.so")
	require.Equal(t, wantDest, b.planner.copyPlan[lib])
	require.Equal(t, "$ORIGIN", b.planner.rpathPlan[wantDest])
	_, stripped := b.planner.stripSet[wantDest]
	require.True(t, stripped)
}

func TestDeployLibraryOverrideDestinationRPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfoo.so")
	mustWriteFile(t, lib, "lib")

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)

	override := filepath.Join(root, "opt", "plugins", "libfoo.so")
	require.NoError(t, b.DeployLibrary(lib, override))

	// From opt/plugins, usr/lib is two levels up and back down.
	require.Equal(t, "$ORIGIN/../../usr/lib:$ORIGIN", b.planner.rpathPlan[override])
}

func TestDeployExecutableOverrideRPathSingleEntry(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "myapp")
	mustWriteFile(t, exe, "bin")

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)

	override := filepath.Join(root, "usr", "libexec") + string(filepath.Separator)
	require.NoError(t, b.DeployExecutable(exe, override))

	wantTarget := filepath.Join(root, "usr", "libexec", "myapp")
	require.Equal(t, "$ORIGIN/../lib", b.planner.rpathPlan[wantTarget])
	_, stripped := b.planner.stripSet[wantTarget]
	require.True(t, stripped)
}

func TestDeployLibraryExcludedIsSkippedButVisited(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libc.so.6")
	mustWriteFile(t, lib, "lib")

	oracle := newFakeOracle()
	b, _ := newTestBundle(t, oracle, []string{"libc.so.*"})

	require.NoError(t, b.DeployLibrary(lib, ""))
	require.Empty(t, b.planner.copyPlan, "excluded library must not be enqueued for copy")
	require.True(t, b.planner.hasVisited(lib))
}

func TestForceDeployLibraryBypassesExclude(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libc.so.6")
	mustWriteFile(t, lib, "lib")

	oracle := newFakeOracle()
	b, _ := newTestBundle(t, oracle, []string{"libc.so.*"})

	require.NoError(t, b.ForceDeployLibrary(lib, ""))
	require.NotEmpty(t, b.planner.copyPlan, "force-deployed library must be enqueued despite exclusion")
}

func TestDeployLibraryRecursesThroughDependencies(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "libapp.so")
	dep := filepath.Join(dir, "libdep.so")
	mustWriteFile(t, app, "app")
	mustWriteFile(t, dep, "dep")

	oracle := newFakeOracle()
	oracle.deps[app] = []string{dep}

	b, root := newTestBundle(t, oracle, nil)
	require.NoError(t, b.DeployLibrary(app, ""))

	wantDepDest := filepath.Join(root, "usr", "lib", "libdep.so")
	require.Contains(t, b.planner.copyPlan, dep)
	require.Equal(t, wantDepDest, b.planner.copyPlan[dep])
}

func TestForceDeployLibraryWithTransitiveDepsAndExclusion(t *testing.T) {
	dir := t.TempDir()
	libA := filepath.Join(dir, "libA.so")
	libB := filepath.Join(dir, "libB.so")
	libc := filepath.Join(dir, "libc.so.6")
	mustWriteFile(t, libA, "a")
	mustWriteFile(t, libB, "b")
	mustWriteFile(t, libc, "c")

	oracle := newFakeOracle()
	oracle.deps[libA] = []string{libB}
	oracle.deps[libB] = []string{libc}

	b, root := newTestBundle(t, oracle, []string{"libc.so.*"})
	require.NoError(t, b.ForceDeployLibrary(libA, ""))

	libDir := filepath.Join(root, "usr", "lib")
	require.Equal(t, filepath.Join(libDir, "libA.so"), b.planner.copyPlan[libA])
	require.Equal(t, filepath.Join(libDir, "libB.so"), b.planner.copyPlan[libB])
	require.NotContains(t, b.planner.copyPlan, libc)

	for _, dest := range []string{filepath.Join(libDir, "libA.so"), filepath.Join(libDir, "libB.so")} {
		require.Equal(t, "$ORIGIN", b.planner.rpathPlan[dest])
		_, stripped := b.planner.stripSet[dest]
		require.True(t, stripped)
	}

	for _, src := range []string{libA, libB, libc} {
		require.True(t, b.planner.hasVisited(src), "expected %s to be marked visited", src)
	}
}

func TestDeployLibraryPropagatesDependencyNotFound(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "libapp.so")
	mustWriteFile(t, app, "app")

	oracle := newFakeOracle()
	oracle.depsErr[app] = &elfdep.DependencyNotFoundError{Library: "libmissing.so"}

	b, _ := newTestBundle(t, oracle, nil)
	err := b.DeployLibrary(app, "")
	require.Error(t, err)

	appErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, KindDependencyNotFound, appErr.Kind)
}

func TestDeployExecutableDefaultRPathAndExecBit(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "myapp")
	mustWriteFile(t, exe, "bin")

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)

	require.NoError(t, b.DeployExecutable(exe, ""))

	wantDest := filepath.Join(root, "usr", "bin", "myapp")
	require.Equal(t, "$ORIGIN/../lib", b.planner.rpathPlan[wantDest])
	_, wantExec := b.planner.execOnCopy[wantDest]
	require.True(t, wantExec)
}

func TestDeployIconRenamesToAppNameWhenPrefixed(t *testing.T) {
	dir := t.TempDir()
	icon := filepath.Join(dir, "myapp-small.png")
	writePNG(t, icon, 64)

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)
	b.SetAppName("myapp")

	require.NoError(t, b.DeployIcon(icon))

	wantDest := filepath.Join(root, "usr", "share", "icons", "hicolor", "64x64", "apps", "myapp.png")
	require.Contains(t, b.planner.copyPlan, icon)
	require.Equal(t, wantDest, b.planner.copyPlan[icon])
}

func TestDeployDesktopFileLogsButDoesNotFailOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.desktop")
	mustWriteFile(t, path, "[Desktop Entry]\nName=NoExecOrType\n")

	df, err := desktopfile.New(path)
	require.NoError(t, err)

	oracle := newFakeOracle()
	b, root := newTestBundle(t, oracle, nil)

	require.NoError(t, b.DeployDesktopFile(df))

	wantDest := filepath.Join(root, "usr", "share", "applications", "bad.desktop")
	require.Equal(t, wantDest, b.planner.copyPlan[path])
}

func TestDeployedAccessorsReflectBundleContents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "share", "applications"), 0755))
	mustWriteFile(t, filepath.Join(root, "usr", "bin", "myapp"), "bin")
	mustWriteFile(t, filepath.Join(root, "usr", "share", "applications", "myapp.desktop"),
		"[Desktop Entry]\nName=MyApp\nExec=myapp\nType=Application\n")

	oracle := newFakeOracle()
	b := NewWithCapabilities(root, oracle, mustEmptyExclude(t), copyright.New(root), newFakeRunner())

	require.Equal(t, []string{filepath.Join(root, "usr", "bin", "myapp")}, b.DeployedExecutablePaths())

	desktopFiles, err := b.DeployedDesktopFiles()
	require.NoError(t, err)
	require.Len(t, desktopFiles, 1)
}

func mustEmptyExclude(t *testing.T) *excludelist.Matcher {
	t.Helper()
	m, err := excludelist.NewFromPatterns(nil)
	require.NoError(t, err)
	return m
}
