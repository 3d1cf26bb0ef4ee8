// Package appdir assembles AppDir bundles. A Bundle accumulates deferred
// copy/strip/rpath operations across any number of deploy calls, then
// drains them in a fixed order on Execute, and finally links the desktop
// file, icon and AppRun entry point into the bundle root.
package appdir

import (
	"os"
	"path/filepath"

	"github.com/patrickelectric/linuxdeploy/internal/copyright"
	"github.com/patrickelectric/linuxdeploy/internal/elfdep"
	"github.com/patrickelectric/linuxdeploy/internal/excludelist"
	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/runner"
)

// basicStructureDirs are the directories CreateBasicStructure creates in
// addition to the per-resolution icon directories.
var basicStructureDirs = []string{
	filepath.Join("usr", "bin"),
	filepath.Join("usr", "lib"),
	filepath.Join("usr", "share", "applications"),
	filepath.Join("usr", "share", "icons", "hicolor"),
}

var iconResolutions = []string{"16x16", "32x32", "64x64", "128x128", "256x256", "scalable"}

// Bundle is one AppDir under construction: the root path, optional app
// name, and the planner + visited set the engine mutates across however
// many deploy* calls the caller issues before Execute.
type Bundle struct {
	root    string
	appName string

	planner *planner

	oracle    elfdep.Oracle
	exclude   *excludelist.Matcher
	copyright *copyright.Locator
	runner    runner.Runner
}

// New constructs a Bundle rooted at root, wiring the default ELF oracle,
// exclude-list matcher, copyright locator and command runner. Use
// NewWithCapabilities to substitute fakes in tests.
func New(root string) (*Bundle, error) {
	exclude, err := excludelist.New()
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return NewWithCapabilities(absRoot, elfdep.NewSystemOracle(), exclude, copyright.New(absRoot), runner.Exec{}), nil
}

// NewWithCapabilities constructs a Bundle with explicit capability
// implementations, the seam tests use to avoid touching the host's real
// patchelf/dpkg-query/libraries.
func NewWithCapabilities(root string, oracle elfdep.Oracle, exclude *excludelist.Matcher, cr *copyright.Locator, r runner.Runner) *Bundle {
	return &Bundle{
		root:      root,
		planner:   newPlanner(),
		oracle:    oracle,
		exclude:   exclude,
		copyright: cr,
		runner:    r,
	}
}

// Path returns the AppDir's root path.
func (b *Bundle) Path() string { return b.root }

// SetAppName sets the app name used for icon basename normalization and
// desktop-file disambiguation.
func (b *Bundle) SetAppName(name string) { b.appName = name }

// CreateBasicStructure creates the canonical AppDir skeleton: usr/bin,
// usr/lib, usr/share/applications and the hicolor icon theme directories.
// It is idempotent: directories that already exist are left alone.
func (b *Bundle) CreateBasicStructure() error {
	dirs := append([]string{}, basicStructureDirs...)
	for _, resolution := range iconResolutions {
		dirs = append(dirs, filepath.Join("usr", "share", "icons", "hicolor", resolution, "apps"))
	}

	for _, dir := range dirs {
		full := filepath.Join(b.root, dir)

		if info, err := os.Stat(full); err == nil && info.IsDir() {
			continue
		}

		log.Infof("Creating directory %s", full)

		if err := os.MkdirAll(full, 0755); err != nil {
			return wrapErr(KindFileSystem, full, err, "create directory")
		}
	}

	return nil
}

// Execute drains the deferred copy/strip/rpath plan.
func (b *Bundle) Execute() error {
	return b.planner.execute(b.oracle, b.runner)
}
