// Package elfdep inspects and mutates ELF binaries: it lists NEEDED
// libraries resolved against the host's library search paths, and reads or
// rewrites rpaths. Dependency listing uses stdlib debug/elf; rpath
// get/set shells out to patchelf.
package elfdep

import (
	"debug/elf"
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/runner"
)

// ParseError indicates a file is not valid ELF. Listing code uses it to
// silently filter out non-ELF files rather than surfacing a user error.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return "not an ELF file: " + e.Path + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// DependencyNotFoundError reports a NEEDED library that could not be
// located anywhere on the host. Fatal for the enclosing deploy call.
type DependencyNotFoundError struct {
	Library string
}

func (e *DependencyNotFoundError) Error() string { return "dependency not found: " + e.Library }

// Oracle is the ELF capability consumed by the deployment engine.
type Oracle interface {
	TraceDynamicDependencies(path string) ([]string, error)
	GetRPath(path string) (string, error)
	SetRPath(path, rpath string) error
}

// SystemOracle is the default Oracle, backed by debug/elf for introspection
// and patchelf (via the command runner) for rpath mutation.
type SystemOracle struct {
	Runner        runner.Runner
	SearchPaths   []string
	LibraryEnvVar string // LD_LIBRARY_PATH, overridable for tests
}

// DefaultSearchPaths are the standard multilib locations plus the
// Debian/Ubuntu multiarch triplet directories from /etc/ld.so.conf.d/.
var DefaultSearchPaths = []string{
	"/usr/lib64", "/lib64", "/usr/lib", "/lib",
	"/usr/lib/x86_64-linux-gnu/libfakeroot",
	"/usr/local/lib",
	"/usr/local/lib/x86_64-linux-gnu",
	"/lib/x86_64-linux-gnu",
	"/usr/lib/x86_64-linux-gnu",
	"/lib32",
	"/usr/lib32",
}

// NewSystemOracle returns a SystemOracle using the default runner and
// search-path list, plus any directories in $LD_LIBRARY_PATH.
func NewSystemOracle() *SystemOracle {
	return &SystemOracle{
		Runner:        runner.Exec{},
		SearchPaths:   append([]string{}, DefaultSearchPaths...),
		LibraryEnvVar: "LD_LIBRARY_PATH",
	}
}

// IsELF reports whether path names a regular file with an ELF magic header,
// without attempting a full parse. Used by listing code to filter
// directories down to candidate ELF files cheaply.
func IsELF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [4]byte
	if n, err := f.Read(magic[:]); err != nil || n < 4 {
		return false
	}
	return magic[0] == 0x7f && magic[1] == 'E' && magic[2] == 'L' && magic[3] == 'F'
}

// searchPaths returns the configured search paths plus any directories
// named in $LD_LIBRARY_PATH.
func (o *SystemOracle) searchPaths() []string {
	paths := append([]string{}, o.SearchPaths...)

	envVar := o.LibraryEnvVar
	if envVar == "" {
		envVar = "LD_LIBRARY_PATH"
	}

	for _, p := range strings.Split(os.Getenv(envVar), ":") {
		if p == "" {
			continue
		}
		paths = append(paths, filepath.Clean(p))
	}

	return paths
}

func (o *SystemOracle) findLibrary(name string) (string, bool) {
	if strings.Contains(name, "/") {
		if _, err := os.Stat(name); err == nil {
			return name, true
		}
		return "", false
	}

	for _, dir := range o.searchPaths() {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// TraceDynamicDependencies returns the direct NEEDED entries of path,
// resolved to absolute paths using host dynamic-linker search semantics
// (search-path list + $LD_LIBRARY_PATH). Recursion across the dependency
// graph is the deployment engine's responsibility, not the oracle's.
func (o *SystemOracle) TraceDynamicDependencies(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	names, err := f.ImportedLibraries()
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var resolved []string
	for _, name := range names {
		libPath, ok := o.findLibrary(name)
		if !ok {
			return nil, &DependencyNotFoundError{Library: name}
		}
		resolved = append(resolved, libPath)
	}

	return resolved, nil
}

// GetRPath reads path's current rpath (or runpath) via patchelf.
func (o *SystemOracle) GetRPath(path string) (string, error) {
	result, err := o.Runner.Run([]string{"patchelf", "--print-rpath", path}, nil)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", &SubprocessError{Argv: []string{"patchelf", "--print-rpath", path}, Stderr: string(result.Stderr)}
	}
	return strings.TrimSpace(string(result.Stdout)), nil
}

// SetRPath overwrites path's rpath via patchelf.
func (o *SystemOracle) SetRPath(path, rpath string) error {
	result, err := o.Runner.Run([]string{"patchelf", "--set-rpath", rpath, path}, nil)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &SubprocessError{Argv: []string{"patchelf", "--set-rpath", rpath, path}, Stderr: string(result.Stderr)}
	}
	return nil
}

// SubprocessError wraps a non-zero exit from an external tool.
type SubprocessError struct {
	Argv   []string
	Stderr string
}

func (e *SubprocessError) Error() string {
	return strings.Join(e.Argv, " ") + " failed: " + e.Stderr
}
