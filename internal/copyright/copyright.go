// Package copyright locates license files for deployed host files: given a
// path, it resolves the owning package via dpkg-query and checks for the
// package's /usr/share/doc copyright file. Absence of copyright data is
// never an error, only a debug/warning log line.
package copyright

import (
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/pathutil"
	"github.com/patrickelectric/linuxdeploy/internal/runner"
)

// Locator finds copyright files for host paths. AppDirPath lets it refuse
// to search for files that are already inside the bundle being built.
type Locator struct {
	AppDirPath string
	Runner     runner.Runner
}

// New returns a Locator backed by runner.Exec{}.
func New(appDirPath string) *Locator {
	return &Locator{AppDirPath: appDirPath, Runner: runner.Exec{}}
}

// FindCopyrights resolves copyright files for src. It never returns an
// error: absence of copyright data is at most a warning.
func (l *Locator) FindCopyrights(src string) []string {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		absSrc = src
	}
	absRoot, err := filepath.Abs(l.AppDirPath)
	if err == nil && strings.HasPrefix(absSrc, absRoot) {
		log.Debugf("cannot deploy copyright files for files in AppDir: %s", src)
		return nil
	}

	if _, err := exec.LookPath("dpkg-query"); err != nil {
		log.Debugf("dpkg-query not available, skipping copyright deployment for %s", src)
		return nil
	}

	result, err := l.Runner.Run([]string{"dpkg-query", "-S", src}, nil)
	if err != nil || result.ExitCode != 0 {
		log.Warnf("could not find copyright files for file %s using dpkg-query", src)
		return nil
	}

	firstLine := strings.SplitN(strings.TrimSpace(string(result.Stdout)), "\n", 2)[0]
	packageName := strings.SplitN(firstLine, ":", 2)[0]
	if packageName == "" {
		log.Warnf("could not find copyright files for file %s using dpkg-query", src)
		return nil
	}

	copyrightPath := filepath.Join("/usr/share/doc", packageName, "copyright")
	if !pathutil.IsRegularFile(copyrightPath) {
		return nil
	}

	return []string{copyrightPath}
}
