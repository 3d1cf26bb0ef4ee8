// Package desktopfile parses freedesktop.org desktop entry files: keyed
// lookup over [Desktop Entry], notably Icon and Exec, plus a Validate
// predicate. A desktop entry file is INI-shaped, so parsing is done with
// github.com/go-ini/ini; Validate applies the required-key checks
// desktop-file-validate would flag as fatal, without shelling out to it.
package desktopfile

import (
	"fmt"
	"os"

	"github.com/go-ini/ini"
)

const mainSection = "Desktop Entry"

// File is a parsed desktop entry, addressable by path.
type File struct {
	path string
	cfg  *ini.File
}

// New parses the desktop file at path. A missing file is not an error: a
// File may be constructed for a not-yet-existing path, populated with
// AddDefaultKeys, and written out with Save (how --create-desktop-file
// works). The absence only surfaces through Validate or GetEntry lookups.
func New(path string) (*File, error) {
	df := &File{path: path}

	if _, err := os.Stat(path); err != nil {
		df.cfg = ini.Empty()
		return df, nil
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:    true,
		AllowNonUniqueSections: false,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("parse desktop file %s: %w", path, err)
	}
	df.cfg = cfg

	return df, nil
}

// Path returns the file's on-disk path.
func (d *File) Path() string { return d.path }

// GetEntry looks up section/key, returning ("", false) if either is absent.
func (d *File) GetEntry(section, key string) (string, bool) {
	sec, err := d.cfg.GetSection(section)
	if err != nil {
		return "", false
	}
	if !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// Validate performs the minimal checks desktop-file-validate would flag as
// fatal: Type, Name and Exec present and non-empty in [Desktop Entry].
// Validation failures are logged by callers but are non-fatal.
func (d *File) Validate() bool {
	for _, key := range []string{"Type", "Name", "Exec"} {
		value, ok := d.GetEntry(mainSection, key)
		if !ok || value == "" {
			return false
		}
	}
	return true
}

// AddDefaultKeys populates a minimal [Desktop Entry] section good enough
// for --create-desktop-file. Existing non-empty values are left alone; the
// return value reports whether all keys could be set.
func (d *File) AddDefaultKeys(executableName string) bool {
	sec, err := d.cfg.GetSection(mainSection)
	if err != nil {
		sec, _ = d.cfg.NewSection(mainSection)
	}

	overwrote := false
	set := func(key, value string) {
		if sec.HasKey(key) && sec.Key(key).String() != "" {
			overwrote = true
			return
		}
		sec.Key(key).SetValue(value)
	}

	set("Type", "Application")
	set("Name", executableName)
	set("Exec", executableName)
	set("Icon", executableName)
	set("Categories", "Utility;")

	return !overwrote
}

// Save writes the desktop file back to its path.
func (d *File) Save() error {
	return d.cfg.SaveTo(d.path)
}
