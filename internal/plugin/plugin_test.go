package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
}

func TestDiscoverFindsInputAndOutputPlugins(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "linuxdeploy-plugin-qt"))
	writeExecutable(t, filepath.Join(dir, "linuxdeploy-output-appimage"))
	// non-matching and non-executable entries must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "linuxdeploy-plugin-gtk.txt"), []byte("x"), 0644))
	writeExecutable(t, filepath.Join(dir, "unrelated-tool"))

	t.Setenv("PATH", dir)

	found := Discover("")

	names := map[string]Type{}
	for _, p := range found {
		names[p.Name()] = p.PluginType()
	}

	require.Equal(t, InputType, names["qt"])
	require.Equal(t, OutputType, names["appimage"])
	require.NotContains(t, names, "gtk.txt")
	require.NotContains(t, names, "unrelated-tool")
}

func TestDiscoverPrefersAppImageDirOverPath(t *testing.T) {
	pathDir := t.TempDir()
	appImageDir := t.TempDir()

	writeExecutable(t, filepath.Join(pathDir, "linuxdeploy-plugin-qt"))
	writeExecutable(t, filepath.Join(appImageDir, "linuxdeploy-plugin-qt"))

	t.Setenv("PATH", pathDir)

	found := Discover(filepath.Join(appImageDir, "App.AppImage"))

	p, ok := Find(found, "qt", InputType)
	require.True(t, ok)
	require.Equal(t, filepath.Join(appImageDir, "linuxdeploy-plugin-qt"), p.Path())
}

func TestFindRejectsWrongType(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "linuxdeploy-plugin-qt"))
	t.Setenv("PATH", dir)

	found := Discover("")

	_, ok := Find(found, "qt", OutputType)
	require.False(t, ok)
}
