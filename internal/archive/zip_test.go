package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "XML"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "listado.txt"), []byte("seed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "XML", "doc.xml"), []byte("<factura/>"), 0o644))

	zipPath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, ZipDir(src, zipPath))

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	contents := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"listado.txt": "seed",
		"XML/doc.xml": "<factura/>",
	}, contents)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteZipSurfacesFlushError(t *testing.T) {
	// An empty source writes nothing until the final central-directory
	// flush; that failure must not be swallowed.
	err := writeZip(brokenWriter{}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestZipDirMissingSource(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "out.zip")
	assert.Error(t, ZipDir(filepath.Join(t.TempDir(), "no-such-dir"), zipPath))
}
