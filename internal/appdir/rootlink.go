package appdir

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/desktopfile"
	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/pathutil"
)

// CreateLinksInAppDirRoot finalizes the bundle's top level: it symlinks the
// chosen desktop file and its icon into the bundle root, and creates AppRun
// as either a copy of a custom script or a symlink to the Exec= binary.
func (b *Bundle) CreateLinksInAppDirRoot(df *desktopfile.File, customAppRunPath string) error {
	log.Infof("Deploying desktop file to AppDir root: %s", df.Path())

	if err := pathutil.SymlinkRelative(df.Path(), b.root, false); err != nil {
		return wrapErr(KindFileSystem, df.Path(), err, "link desktop file into AppDir root")
	}

	iconName, ok := df.GetEntry("Desktop Entry", "Icon")
	if !ok {
		return newErr(KindValidation, df.Path(), "Icon entry missing in desktop file")
	}

	foundIconPaths := b.DeployedIconPaths()
	if len(foundIconPaths) == 0 {
		return newErr(KindIconResolution, iconName, "could not find icon for Icon entry")
	}

	iconDeployed := false
	for _, iconPath := range foundIconPaths {
		base := filepath.Base(iconPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		matchesWithExtension := base == iconName

		if stem == iconName || matchesWithExtension {
			if matchesWithExtension {
				log.Warnf("Icon= entry filename contains extension")
			}

			log.Infof("Deploying icon to AppDir root: %s", iconPath)
			if err := pathutil.SymlinkRelative(iconPath, b.root, false); err != nil {
				return wrapErr(KindFileSystem, iconPath, err, "link icon into AppDir root")
			}
			iconDeployed = true
			break
		}
	}

	if !iconDeployed {
		return newErr(KindIconResolution, iconName, "could not find suitable icon for Icon entry")
	}

	appRunPath := filepath.Join(b.root, "AppRun")

	if customAppRunPath != "" {
		log.Infof("Deploying custom AppRun: %s", customAppRunPath)
		if err := pathutil.CopyFile(customAppRunPath, appRunPath, false); err != nil {
			return wrapErr(KindFileSystem, customAppRunPath, err, "copy custom AppRun")
		}
		// AppRun is copied directly here, bypassing the deferred copy plan,
		// so the executable bit is applied immediately rather than relying
		// on a subsequent Execute() call that may never come.
		if err := os.Chmod(appRunPath, 0755); err != nil {
			return wrapErr(KindFileSystem, appRunPath, err, "set AppRun executable bit")
		}
		return nil
	}

	if pathutil.Exists(appRunPath) {
		log.Warnf("Custom AppRun detected, skipping deployment of symlink")
		return nil
	}

	executableEntry, ok := df.GetEntry("Desktop Entry", "Exec")
	if !ok {
		return newErr(KindValidation, df.Path(), "Exec entry missing in desktop file")
	}

	executableName := strings.Fields(executableEntry)[0]

	foundExecutablePaths := b.DeployedExecutablePaths()
	if len(foundExecutablePaths) == 0 {
		return newErr(KindIconResolution, executableName, "could not find suitable executable for Exec entry")
	}

	for _, executablePath := range foundExecutablePaths {
		if filepath.Base(executablePath) == executableName {
			log.Infof("Deploying AppRun symlink for executable in AppDir root: %s", executablePath)
			if err := pathutil.SymlinkRelative(executablePath, appRunPath, false); err != nil {
				return wrapErr(KindFileSystem, executablePath, err, "link AppRun to executable")
			}
			return nil
		}
	}

	return newErr(KindIconResolution, executableName, "could not find suitable executable for Exec entry")
}

// SelectDesktopFile picks the desktop file the root linker should use when
// multiple are present: the first whose basename starts with appName and
// ends with .desktop, else the first enumerated (logged as a fallback).
func SelectDesktopFile(files []*desktopfile.File, appName string) *desktopfile.File {
	if len(files) == 0 {
		return nil
	}

	if appName != "" {
		for _, df := range files {
			name := filepath.Base(df.Path())
			if strings.HasPrefix(name, appName) && strings.HasSuffix(name, ".desktop") {
				log.Infof("Found desktop file matching app name: %s", df.Path())
				return df
			}
		}
	}

	log.Warnf("Could not find suitable desktop file for app name, using first desktop file found: %s", files[0].Path())
	return files[0]
}
