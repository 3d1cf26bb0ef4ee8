package appdir

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/desktopfile"
	"github.com/patrickelectric/linuxdeploy/internal/elfdep"
	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/pathutil"
)

// logPrefix indents log lines by recursion depth so nested dependency
// deployment stays readable.
func logPrefix(recursion int) string {
	return strings.Repeat("  ", recursion)
}

// destinationFor applies the cp-like destination rule: a destination ending
// in a path separator, or one that already names a directory, gets
// basename(src) appended.
func destinationFor(src, destOverride, defaultDir string) string {
	dest := destOverride
	if dest == "" {
		dest = defaultDir
	}
	if strings.HasSuffix(dest, string(filepath.Separator)) || isDir(dest) {
		return filepath.Join(dest, filepath.Base(src))
	}
	return dest
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// relToUsrLib returns the relative path from a destination override to the
// bundle's canonical usr/lib directory, the "<rel>" in override rpaths. An
// override with a trailing slash names the directory itself; otherwise its
// parent is used. Both sides are made absolute and cleaned first so a
// relative or unclean input can't skew the ".." count; symlinks are not
// resolved.
func (b *Bundle) relToUsrLib(destOverride string) (string, error) {
	rpathDir := destOverride
	if strings.HasSuffix(destOverride, string(filepath.Separator)) {
		rpathDir = strings.TrimRight(destOverride, string(filepath.Separator))
	} else {
		rpathDir = filepath.Dir(destOverride)
	}

	absDir, err := filepath.Abs(rpathDir)
	if err != nil {
		return "", err
	}

	absUsrLib, err := filepath.Abs(filepath.Join(b.root, "usr", "lib"))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absDir, absUsrLib)
	if err != nil {
		return "", err
	}
	return filepath.Clean(rel), nil
}

// DeployFile registers a bare copy with no rpath/strip bookkeeping, for
// callers that just need an arbitrary file placed in the bundle (a license,
// a README).
func (b *Bundle) DeployFile(from, to string) {
	log.Infof("Deploying file %s to %s", from, to)
	dest := to
	if strings.HasSuffix(to, string(filepath.Separator)) || isDir(to) {
		dest = filepath.Join(to, filepath.Base(from))
	}
	b.planner.enqueueCopy(from, dest)
	b.planner.markVisited(from)
}

// deployCopyrightFiles locates and enqueues copyright files for src,
// mirroring the host's /usr/share/doc/<pkg>/copyright layout inside the
// bundle so license-aggregation tools can find them at predictable paths.
// The mirrored path comes from a dpkg-query lookup, so it's joined with
// SecureJoin rather than a bare filepath.Join: an unexpected package name
// must not be able to escape the bundle root via ".." components.
func (b *Bundle) deployCopyrightFiles(src string) {
	for _, copyrightPath := range b.copyright.FindCopyrights(src) {
		target, err := pathutil.SecureJoin(b.root, strings.TrimPrefix(copyrightPath, string(filepath.Separator)))
		if err != nil {
			log.Warnf("Refusing to deploy copyright file outside AppDir root: %s", copyrightPath)
			continue
		}
		b.planner.enqueueCopy(copyrightPath, target)
	}
}

func (b *Bundle) isExcluded(src string) bool {
	return b.exclude.IsExcluded(filepath.Base(src))
}

// DeployLibrary deploys a shared library into usr/lib (or destOverride)
// along with its transitive ELF dependencies.
func (b *Bundle) DeployLibrary(src string, destOverride string) error {
	return b.deployLibrary(src, 0, false, destOverride)
}

// ForceDeployLibrary deploys a library even if it has already been visited
// or matches the exclude list. Dependencies are still deployed normally.
func (b *Bundle) ForceDeployLibrary(src string, destOverride string) error {
	return b.deployLibrary(src, 0, true, destOverride)
}

func (b *Bundle) deployLibrary(src string, recursion int, force bool, destOverride string) error {
	prefix := logPrefix(recursion)

	if !force && b.planner.hasVisited(src) {
		log.Debugf("%sFile has been visited already: %s", prefix, src)
		return nil
	}

	if !force && b.isExcluded(src) {
		log.Infof("%sSkipping deployment of blacklisted library %s", prefix, src)
		b.planner.markVisited(src)
		return nil
	}

	log.Infof("%sDeploying shared library %s", prefix, src)

	defaultDir := filepath.Join(b.root, "usr", "lib") + string(filepath.Separator)
	destination := destinationFor(src, destOverride, defaultDir)

	b.planner.enqueueCopy(src, destination)
	b.planner.markVisited(src)

	b.deployCopyrightFiles(src)

	rpath := "$ORIGIN"
	if destOverride != "" {
		rel, err := b.relToUsrLib(destOverride)
		if err != nil {
			return wrapErr(KindFileSystem, src, err, "compute relative rpath")
		}
		rpath = "$ORIGIN/" + rel + ":$ORIGIN"
	}

	b.planner.enqueueRPath(destination, rpath)
	b.planner.enqueueStrip(destination)

	return b.deployElfDependencies(src, recursion)
}

func (b *Bundle) deployElfDependencies(src string, recursion int) error {
	prefix := logPrefix(recursion)
	log.Infof("%sDeploying dependencies for ELF file %s", prefix, src)

	deps, err := b.oracle.TraceDynamicDependencies(src)
	if err != nil {
		if _, ok := err.(*elfdep.ParseError); ok {
			// Non-ELF input: nothing to trace, not an error for callers
			// that fan a directory scan through this path.
			return nil
		}
		if depErr, ok := err.(*elfdep.DependencyNotFoundError); ok {
			log.Errorf("%s", depErr.Error())
			return &Error{Kind: KindDependencyNotFound, Path: src, Err: depErr}
		}
		return err
	}

	for _, dep := range deps {
		if err := b.deployLibrary(dep, recursion+1, false, ""); err != nil {
			return err
		}
	}

	return nil
}

// DeployExecutable deploys an executable into usr/bin (or destOverride)
// along with its transitive ELF dependencies. Executables get an
// "$ORIGIN/../lib" rpath so they resolve the bundled libraries.
func (b *Bundle) DeployExecutable(src string, destOverride string) error {
	if b.planner.hasVisited(src) {
		log.Debugf("File has been visited already: %s", src)
		return nil
	}

	log.Infof("Deploying executable %s", src)

	defaultDir := filepath.Join(b.root, "usr", "bin") + string(filepath.Separator)
	destination := destinationFor(src, destOverride, defaultDir)

	b.planner.enqueueCopy(src, destination)
	b.planner.markVisited(src)

	b.deployCopyrightFiles(src)

	rpath := "$ORIGIN/../lib"
	if destOverride != "" {
		rel, err := b.relToUsrLib(destOverride)
		if err != nil {
			return wrapErr(KindFileSystem, src, err, "compute relative rpath")
		}
		rpath = "$ORIGIN/" + rel
	}

	// Unlike libraries, the ELF bookkeeping targets <dest>/<basename> built
	// from the raw destination rather than the resolved copy target.
	rawDest := destOverride
	if rawDest == "" {
		rawDest = defaultDir
	}
	elfTarget := filepath.Join(rawDest, filepath.Base(src))

	b.planner.enqueueRPath(elfTarget, rpath)
	b.planner.enqueueStrip(elfTarget)
	b.planner.markExecutable(destination)

	return b.deployElfDependencies(src, 0)
}

// DeployIcon deploys an icon into the hicolor theme directory matching its
// resolution. When an app name is set, icons whose filename starts with the
// app name (e.g. <appname>_128.png, <appname>-small.png) are renamed to
// <appname>.ext so desktop files can reference them uniformly.
func (b *Bundle) DeployIcon(src string) error {
	if b.planner.hasVisited(src) {
		log.Debugf("File has been visited already: %s", src)
		return nil
	}

	log.Infof("Deploying icon %s", src)

	bucket, square, err := resolveIconBucket(src)
	if err != nil {
		return err
	}
	if !square {
		log.Warnf("x and y resolution of icon are not equal: %s", src)
	}

	filename := filepath.Base(src)
	if b.appName != "" && strings.HasPrefix(filename, b.appName) {
		newFilename := b.appName + filepath.Ext(src)
		if newFilename != filename {
			log.Warnf("Renaming icon %s to %s", src, newFilename)
			filename = newFilename
		}
	}

	destination := filepath.Join(b.root, "usr", "share", "icons", "hicolor", bucket, "apps", filename)

	b.planner.enqueueCopy(src, destination)
	b.planner.markVisited(src)
	b.deployCopyrightFiles(src)

	return nil
}

// DeployDesktopFile deploys a desktop file into usr/share/applications.
// Validation failures are logged but do not abort the deployment.
func (b *Bundle) DeployDesktopFile(df *desktopfile.File) error {
	if b.planner.hasVisited(df.Path()) {
		log.Debugf("File has been visited already: %s", df.Path())
		return nil
	}

	if !df.Validate() {
		log.Errorf("Failed to validate desktop file: %s", df.Path())
	}

	log.Infof("Deploying desktop file %s", df.Path())

	destDir := filepath.Join(b.root, "usr", "share", "applications") + string(filepath.Separator)
	b.planner.enqueueCopy(df.Path(), filepath.Join(destDir, filepath.Base(df.Path())))
	b.planner.markVisited(df.Path())

	return nil
}

// listExecutables returns usr/bin's regular files that parse as ELF.
func (b *Bundle) listExecutables() []string {
	var out []string
	for _, f := range pathutil.ListFiles(filepath.Join(b.root, "usr", "bin"), false) {
		if elfdep.IsELF(f) {
			out = append(out, f)
		}
	}
	return out
}

// listSharedLibraries returns usr/lib's regular files (recursive) that
// parse as ELF.
func (b *Bundle) listSharedLibraries() []string {
	var out []string
	for _, f := range pathutil.ListFiles(filepath.Join(b.root, "usr", "lib"), true) {
		if elfdep.IsELF(f) {
			out = append(out, f)
		}
	}
	return out
}

// DeployDependenciesForExistingFiles scans usr/bin (non-recursive) and
// usr/lib (recursive) for ELF files, deploys their dependencies, and plans
// the canonical rpath for each existing file.
func (b *Bundle) DeployDependenciesForExistingFiles() error {
	for _, executable := range b.listExecutables() {
		if err := b.deployElfDependencies(executable, 0); err != nil {
			return err
		}
		b.planner.enqueueRPath(executable, "$ORIGIN/../lib")
	}

	for _, lib := range b.listSharedLibraries() {
		if err := b.deployElfDependencies(lib, 0); err != nil {
			return err
		}
		b.planner.enqueueRPath(lib, "$ORIGIN")
	}

	return nil
}

// DeployedIconPaths returns every file under usr/share/icons (recursive)
// plus the top level of usr/share/pixmaps.
func (b *Bundle) DeployedIconPaths() []string {
	icons := pathutil.ListFiles(filepath.Join(b.root, "usr", "share", "icons"), true)
	pixmaps := pathutil.ListFiles(filepath.Join(b.root, "usr", "share", "pixmaps"), false)
	return append(icons, pixmaps...)
}

// DeployedExecutablePaths returns usr/bin's files, non-recursive.
func (b *Bundle) DeployedExecutablePaths() []string {
	return pathutil.ListFiles(filepath.Join(b.root, "usr", "bin"), false)
}

// DeployedDesktopFiles returns parsed *.desktop files in
// usr/share/applications, non-recursive.
func (b *Bundle) DeployedDesktopFiles() ([]*desktopfile.File, error) {
	var out []*desktopfile.File
	for _, p := range pathutil.ListFiles(filepath.Join(b.root, "usr", "share", "applications"), false) {
		if filepath.Ext(p) != ".desktop" {
			continue
		}
		df, err := desktopfile.New(p)
		if err != nil {
			return nil, err
		}
		out = append(out, df)
	}
	return out, nil
}
