// Package plugin discovers and launches linuxdeploy-style plugin
// executables (linuxdeploy-plugin-* and linuxdeploy-output-* binaries found
// on $PATH or next to the running AppImage). It covers only what the CLI
// needs: discovery, naming, type, and run invocation; plugins themselves
// are independent programs invoked with --appdir.
package plugin

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/log"
)

// Type distinguishes input plugins (run before bundling finishes, e.g. a
// Qt or GStreamer deploy helper) from output plugins (run after, e.g. an
// AppImage packager).
type Type int

const (
	InputType Type = iota
	OutputType
)

func (t Type) String() string {
	if t == OutputType {
		return "output"
	}
	return "input"
}

// pluginExpr matches linuxdeploy-plugin-NAME / linuxdeploy-output-NAME
// executable names, with an optional .sh or .AppImage suffix.
var pluginExpr = regexp.MustCompile(`^linuxdeploy-(plugin|output)-([A-Za-z0-9_.-]+?)(?:\.sh|\.AppImage)?$`)

// Plugin is a discovered linuxdeploy plugin executable.
type Plugin struct {
	name       string
	path       string
	pluginType Type
	apiLevel   string
}

func (p *Plugin) Name() string     { return p.name }
func (p *Plugin) Path() string     { return p.path }
func (p *Plugin) PluginType() Type { return p.pluginType }
func (p *Plugin) APILevel() string { return p.apiLevel }

// Run invokes the plugin against the given AppDir path, returning its exit
// code. A non-zero exit code is not itself a Go error: the caller decides
// what to do with it.
func (p *Plugin) Run(appDirPath string) (int, error) {
	cmd := exec.Command(p.path, "--appdir", appDirPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

// Discover searches the directory containing the running binary, then
// $PATH, then (when envAPPIMAGE is set) the AppImage's own directory first
// of all, for executables matching pluginExpr. The first plugin found for a
// given name wins; later directories' duplicates are logged and ignored.
func Discover(envAPPIMAGE string) []*Plugin {
	var dirs []string

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	if pathEnv := os.Getenv("PATH"); pathEnv != "" {
		dirs = append(dirs, strings.Split(pathEnv, ":")...)
	}

	if envAPPIMAGE != "" {
		appImageDir := filepath.Dir(envAPPIMAGE)
		dirs = append([]string{appImageDir}, dirs...)
	}

	found := make(map[string]*Plugin)
	var order []string

	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		log.Debugf("Searching for plugins in directory %s", dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			match := pluginExpr.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}

			fullPath := filepath.Join(dir, entry.Name())
			fi, err := os.Stat(fullPath)
			if err != nil || fi.Mode()&0111 == 0 {
				continue
			}

			name := match[2]

			if _, exists := found[name]; exists {
				log.Debugf("Already found %s plugin, skipping %s", name, fullPath)
				continue
			}

			pluginType := InputType
			if match[1] == "output" {
				pluginType = OutputType
			}

			p := &Plugin{name: name, path: fullPath, pluginType: pluginType}
			found[name] = p
			order = append(order, name)

			log.Debugf("Found plugin '%s': %s", name, fullPath)
		}
	}

	plugins := make([]*Plugin, 0, len(order))
	for _, name := range order {
		plugins = append(plugins, found[name])
	}
	return plugins
}

// Find looks up a discovered plugin by name and checks its type matches
// wantType.
func Find(plugins []*Plugin, name string, wantType Type) (*Plugin, bool) {
	for _, p := range plugins {
		if p.name == name {
			if p.pluginType != wantType {
				return nil, false
			}
			return p, true
		}
	}
	return nil, false
}
