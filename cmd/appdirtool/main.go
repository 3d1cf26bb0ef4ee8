// Command appdirtool builds AppDir bundles: it deploys executables, shared
// libraries, icons and desktop files into a directory tree following the
// AppDir conventions, tracing ELF dependencies and rewriting rpaths along
// the way.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patrickelectric/linuxdeploy/internal/appdir"
	"github.com/patrickelectric/linuxdeploy/internal/desktopfile"
	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/plugin"
)

const version = "2.0.0"

type options struct {
	verbosity        int
	showVersion      bool
	initAppDir       bool
	appDirPath       string
	appName          string
	libraryPaths     []string
	executablePaths  []string
	desktopFilePaths []string
	createDesktop    bool
	iconPaths        []string
	customAppRun     string
	listPlugins      bool
	inputPlugins     []string
	outputPlugins    []string
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "appdirtool",
		Short:         "create AppDir bundles with ease",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.IntVarP(&opts.verbosity, "verbosity", "v", 1, "Verbosity of log output (0 = debug, 1 = info, 2 = warning, 3 = error)")
	flags.BoolVarP(&opts.showVersion, "version", "V", false, "Print version and exit")
	flags.BoolVar(&opts.initAppDir, "init-appdir", false, "Create basic AppDir structure")
	flags.StringVar(&opts.appDirPath, "appdir", "", "Path to target AppDir")
	flags.StringVarP(&opts.appName, "app-name", "n", "", "Application name (used to initialize desktop file and name icons etc.)")
	flags.StringArrayVarP(&opts.libraryPaths, "library", "l", nil, "Shared library to deploy")
	flags.StringArrayVarP(&opts.executablePaths, "executable", "e", nil, "Executable to deploy")
	flags.StringArrayVarP(&opts.desktopFilePaths, "desktop-file", "d", nil, "Desktop file to deploy")
	flags.BoolVar(&opts.createDesktop, "create-desktop-file", false, "Create basic desktop file that is good enough for some tests")
	flags.StringArrayVarP(&opts.iconPaths, "icon-file", "i", nil, "Icon to deploy")
	flags.StringVar(&opts.customAppRun, "custom-apprun", "", "Path to custom AppRun script (appdirtool will not create a symlink but copy this file instead)")
	flags.BoolVar(&opts.listPlugins, "list-plugins", false, "Search for plugins, print them to stdout and exit")
	flags.StringArrayVarP(&opts.inputPlugins, "plugin", "p", nil, "Input plugins to run (check whether they are available with --list-plugins)")
	flags.StringArrayVarP(&opts.outputPlugins, "output", "o", nil, "Output plugins to run (check whether they are available with --list-plugins)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	fmt.Fprintf(os.Stderr, "appdirtool version %s\n", version)

	log.SetVerbosity(log.Verbosity(opts.verbosity))

	if opts.showVersion {
		return nil
	}

	foundPlugins := plugin.Discover(os.Getenv("APPIMAGE"))

	if opts.listPlugins {
		fmt.Println("Available plugins:")
		for _, p := range foundPlugins {
			fmt.Printf("%s: %s (type: %s, API level: %s)\n", p.Name(), p.Path(), p.PluginType(), p.APILevel())
		}
		return nil
	}

	if opts.appDirPath == "" {
		return exitErrorf("--appdir parameter required")
	}

	bundle, err := appdir.New(opts.appDirPath)
	if err != nil {
		return fmt.Errorf("initialize AppDir: %w", err)
	}

	if opts.appName != "" {
		log.Infof("-- Deploying application %q --", opts.appName)
		bundle.SetAppName(opts.appName)
	}

	if opts.initAppDir {
		log.Infof("-- Creating basic AppDir structure --")
		if err := bundle.CreateBasicStructure(); err != nil {
			return err
		}
	}

	log.Infof("-- Deploying dependencies for existing files in AppDir --")
	if err := bundle.DeployDependenciesForExistingFiles(); err != nil {
		log.Errorf("Failed to deploy dependencies for existing files")
		return err
	}

	if len(opts.libraryPaths) > 0 {
		log.Infof("-- Deploying shared libraries --")
		for _, path := range opts.libraryPaths {
			if !pathExists(path) {
				return exitErrorf("No such file or directory: %s", path)
			}
			if err := bundle.ForceDeployLibrary(path, ""); err != nil {
				return exitErrorf("Failed to deploy library: %s", path)
			}
		}
	}

	if len(opts.executablePaths) > 0 {
		log.Infof("-- Deploying executables --")
		for _, path := range opts.executablePaths {
			if !pathExists(path) {
				return exitErrorf("No such file or directory: %s", path)
			}
			if err := bundle.DeployExecutable(path, ""); err != nil {
				return exitErrorf("Failed to deploy executable: %s", path)
			}
		}
	}

	if len(opts.iconPaths) > 0 {
		log.Infof("-- Deploying icons --")
		for _, path := range opts.iconPaths {
			if !pathExists(path) {
				return exitErrorf("No such file or directory: %s", path)
			}
			if err := bundle.DeployIcon(path); err != nil {
				return exitErrorf("Failed to deploy icon: %s", path)
			}
		}
	}

	if len(opts.desktopFilePaths) > 0 {
		log.Infof("-- Deploying desktop files --")
		for _, path := range opts.desktopFilePaths {
			if !pathExists(path) {
				return exitErrorf("No such file or directory: %s", path)
			}
			df, err := desktopfile.New(path)
			if err != nil {
				return exitErrorf("Failed to deploy desktop file: %s", path)
			}
			if err := bundle.DeployDesktopFile(df); err != nil {
				return exitErrorf("Failed to deploy desktop file: %s", path)
			}
		}
	}

	log.Infof("-- Copying files into AppDir --")
	if err := bundle.Execute(); err != nil {
		return err
	}

	if opts.createDesktop {
		if err := createDesktopFile(bundle, opts.executablePaths); err != nil {
			return err
		}
	}

	if len(opts.inputPlugins) > 0 {
		if err := runPlugins(bundle, foundPlugins, opts.inputPlugins, plugin.InputType); err != nil {
			return err
		}
	}

	log.Infof("-- Deploying files into AppDir root directory --")
	if err := linkAppDirRoot(bundle, opts.appName, opts.customAppRun); err != nil {
		return err
	}

	if len(opts.outputPlugins) > 0 {
		if err := runPlugins(bundle, foundPlugins, opts.outputPlugins, plugin.OutputType); err != nil {
			return err
		}
	}

	return nil
}

func createDesktopFile(bundle *appdir.Bundle, executablePaths []string) error {
	if len(executablePaths) == 0 {
		return exitErrorf("--create-desktop-file requires at least one executable to be passed")
	}

	log.Infof("-- Creating desktop file --")
	log.Warnf("Please beware the created desktop file is of low quality and should be edited or replaced before using it for production releases!")

	executableName := filepath.Base(executablePaths[0])
	desktopFilePath := filepath.Join(bundle.Path(), "usr", "share", "applications", executableName+".desktop")

	if pathExists(desktopFilePath) {
		log.Warnf("Working on existing desktop file: %s", desktopFilePath)
	} else {
		log.Infof("Creating new desktop file: %s", desktopFilePath)
	}

	df, err := desktopfile.New(desktopFilePath)
	if err != nil {
		return exitErrorf("Failed to create desktop file: %s", desktopFilePath)
	}

	if ok := df.AddDefaultKeys(executableName); !ok {
		log.Warnf("Tried to overwrite existing entries in desktop file: %s", desktopFilePath)
	}

	if err := df.Save(); err != nil {
		return exitErrorf("Failed to save desktop file: %s", desktopFilePath)
	}

	return nil
}

func runPlugins(bundle *appdir.Bundle, found []*plugin.Plugin, names []string, wantType plugin.Type) error {
	for _, name := range names {
		p, ok := plugin.Find(found, name, wantType)
		if !ok {
			return exitErrorf("Could not find plugin: %s", name)
		}

		log.Infof("-- Running %s plugin: %s --", wantType, name)

		retcode, err := p.Run(bundle.Path())
		if err != nil {
			return fmt.Errorf("run plugin %s: %w", name, err)
		}
		if retcode != 0 {
			log.Errorf("Failed to run plugin: %s", name)
			log.Debugf("Exited with return code: %d", retcode)
			return exitErrorf("plugin %s exited with code %d", name, retcode)
		}
	}
	return nil
}

func linkAppDirRoot(bundle *appdir.Bundle, appName string, customAppRunPath string) error {
	deployed, err := bundle.DeployedDesktopFiles()
	if err != nil {
		return err
	}

	if len(deployed) == 0 {
		log.Warnf("Could not find desktop file in AppDir, cannot create links for AppRun, desktop file and icon in AppDir root")
		return nil
	}

	var df *desktopfile.File
	if appName != "" {
		df = appdir.SelectDesktopFile(deployed, appName)
	} else {
		log.Warnf("App name not specified, using first desktop file found: %s", deployed[0].Path())
		df = deployed[0]
	}

	log.Infof("Deploying desktop file: %s", df.Path())

	return bundle.CreateLinksInAppDirRoot(df, customAppRunPath)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func exitErrorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	log.Errorf("%s", msg)
	return fmt.Errorf("%s", strings.TrimSpace(msg))
}
