package emitter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapi2types/internal/naming"
)

func sampleFiles() map[string][]byte {
	return map[string][]byte{
		"types.go":                      []byte("package api\n"),
		filepath.Join("sub", "doc.txt"): []byte("doc\n"),
	}
}

func TestPlan_SortedSlashPaths(t *testing.T) {
	t.Parallel()
	planned := Plan(sampleFiles())
	require.Len(t, planned, 2)
	require.Equal(t, "sub/doc.txt", planned[0].RelPath)
	require.Equal(t, 4, planned[0].Size)
	require.Equal(t, "types.go", planned[1].RelPath)
	require.Equal(t, os.FileMode(0o644), planned[1].Mode)
}

func TestFinish_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Finish(context.Background(), "test", sampleFiles(), Options{OutDir: dir, DryRun: true}, &Result{})
	require.NoError(t, err)
	require.Equal(t, []string{"sub/doc.txt", "types.go"}, res.Paths())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFinish_WritesFiles(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")
	_, err := Finish(context.Background(), "test", sampleFiles(), Options{OutDir: dir}, &Result{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "doc.txt"))
	require.NoError(t, err)
	require.Equal(t, "doc\n", string(data))

	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-oapi2types-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestWriteFiles_NonEmptyDirNeedsForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600))

	err := WriteFiles(dir, sampleFiles(), false)
	require.ErrorIs(t, err, ErrNotEmpty)

	_, err = Finish(context.Background(), "test", sampleFiles(), Options{OutDir: dir, DryRun: true}, &Result{})
	require.ErrorIs(t, err, ErrNotEmpty)

	require.NoError(t, WriteFiles(dir, sampleFiles(), true))
	_, err = os.Stat(filepath.Join(dir, "types.go"))
	require.NoError(t, err)
}

func TestValidateOutputDirectory_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.Error(t, ValidateOutputDirectory(path, true))
}

func TestCheck(t *testing.T) {
	t.Parallel()
	require.Error(t, Check("x", nil, Options{OutDir: "out"}))
	require.Error(t, Check("x", &Input{}, Options{OutDir: "out"}))
}

func TestDocLines(t *testing.T) {
	t.Parallel()
	require.Equal(t, []string{"A pet.", "Second line."}, DocLines("  A pet.\n\n Second line. \n"))
	require.Nil(t, DocLines(" \n"))
}

func TestIdentifiers_Collisions(t *testing.T) {
	t.Parallel()
	ids, taken := Identifiers([]string{"PetOwner", "pet_owner", "pet-owner"}, naming.Identifier)
	require.Equal(t, map[string]string{"PetOwner": "PetOwner", "pet_owner": "PetOwner2", "pet-owner": "PetOwner3"}, ids)
	require.True(t, taken["PetOwner3"])
}
