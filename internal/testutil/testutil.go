// Package testutil holds fixtures shared by package tests: source archives
// shaped like GitHub tag tarballs and fake dependency-manager scripts.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/require"
)

// TarGz returns a gzipped tarball holding files (path → content).
// Parent directories are emitted as their own entries, like GitHub does.
func TarGz(t testing.TB, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	seenDirs := map[string]bool{}
	for _, name := range names {
		for dir := filepath.Dir(name); dir != "." && dir != "/"; dir = filepath.Dir(dir) {
			if seenDirs[dir] {
				break
			}
			seenDirs[dir] = true
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name:     dir + "/",
				Typeflag: tar.TypeDir,
				Mode:     0755,
			}))
		}

		content := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// WriteTarGz writes TarGz(files) to path
func WriteTarGz(t testing.TB, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, TarGz(t, files), 0644))
}

// SHA1 returns the lowercase hex SHA-1 of s
func SHA1(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// FakeTool is a stand-in dependency manager. It understands
//
//	<tool> install          writes node_modules/.installed in the working directory
//	<tool> run [--silent] X runs the package script X by copying build/<X>.src to the
//	                        path named in build/<X>.out, or fails when build/<X>.fail exists
//
// so tests can assert which directory each call ran in.
type FakeTool struct {
	Path string
}

// NewFakeTool writes the fake tool script into a temp dir. Tests using it
// are skipped on Windows.
func NewFakeTool(t testing.TB) *FakeTool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake build tool is a POSIX shell script")
	}

	script := `#!/bin/sh
cmd="$1"; shift
case "$cmd" in
  install)
    if [ -f .install-fail ]; then echo "install exploded" >&2; exit 1; fi
    mkdir -p node_modules && echo ok > node_modules/.installed
    ;;
  run)
    if [ "$1" = "--silent" ]; then shift; fi
    name="$1"
    if [ -f "build/$name.fail" ]; then echo "script $name failed" >&2; exit 2; fi
    if [ ! -f "build/$name.src" ]; then echo "missing script: $name" >&2; exit 1; fi
    out=$(cat "build/$name.out")
    mkdir -p "$(dirname "$out")"
    cp "build/$name.src" "$out"
    ;;
  *)
    echo "unknown command $cmd" >&2; exit 64
    ;;
esac
`
	path := filepath.Join(t.TempDir(), "fake-npm")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return &FakeTool{Path: path}
}

// InstallCommand returns a command line suitable for build.install_command
func (f *FakeTool) InstallCommand() string {
	return shellquote.Join(f.Path, "install")
}

// RunCommand returns a command line suitable for build.run_command
func (f *FakeTool) RunCommand() string {
	return shellquote.Join(f.Path, "run", "--silent")
}

// Project describes a package source tree laid out for FakeTool
type Project struct {
	Repo     string
	Version  string
	Bin      string // artifact path relative to the project root
	Artifact string // artifact content produced by the build script
	Checksum string // sha1 declared in the manifest; empty = sha1(Artifact)
	Extra    map[string]string
}

// Files returns the archive entries for p, rooted at <repo>-<version>/
func (p Project) Files() map[string]string {
	checksum := p.Checksum
	if checksum == "" {
		checksum = SHA1(p.Artifact)
	}
	bin := p.Bin
	if bin == "" {
		bin = "dist/" + p.Repo
	}

	root := p.Repo + "-" + p.Version + "/"
	files := map[string]string{
		root + "package.json": `{
  "name": "` + p.Repo + `",
  "version": "` + p.Version + `",
  "bin": "` + bin + `",
  "scripts": {"build": "fake"},
  "checksums": {"sha1": "` + checksum + `"},
  "repository": {"type": "git", "url": "git+https://github.com/acme/` + p.Repo + `.git"}
}`,
		root + "build/build.src": p.Artifact,
		root + "build/build.out": bin,
	}
	for name, content := range p.Extra {
		files[root+name] = content
	}
	return files
}

// ArchiveServer serves the tag archives of projects the way GitHub does, at
// /<owner>/<repo>/archive/v<version>.tar.gz. Other paths are 404.
func ArchiveServer(t testing.TB, owner string, projects ...Project) *httptest.Server {
	t.Helper()
	archives := map[string][]byte{}
	for _, p := range projects {
		archives["/"+owner+"/"+p.Repo+"/archive/v"+p.Version+".tar.gz"] = TarGz(t, p.Files())
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-gzip")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}
