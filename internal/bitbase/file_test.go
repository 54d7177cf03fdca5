package bitbase

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finnhauge/gambit/internal/material"
)

func testBits(n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(i*37 + 11)
	}
	return bits
}

// TestFileWriteReadRoundTrip exercises the clustered format end to end:
// header fields, per-cluster random access, and the full load all
// reproducing the written bit array.
func TestFileWriteReadRoundTrip(t *testing.T) {
	const clusterSize = 1024
	bits := testBits(3*clusterSize + 100) // a short final cluster
	path := filepath.Join(t.TempDir(), "KQK.gbb")

	require.NoError(t, WriteFile(path, bits, uint64(len(bits))*8, clusterSize))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	require.Equal(t, uint32(currentVersion), h.Version)
	require.Equal(t, uint32(compressionZstd), h.Compression)
	require.Equal(t, uint32(clusterSize), h.ClusterSize)
	require.Equal(t, uint32(4), h.ClusterCount)
	require.Equal(t, uint64(len(bits))*8, h.TotalBits)

	second, err := r.ReadCluster(1)
	require.NoError(t, err)
	require.Equal(t, bits[clusterSize:2*clusterSize], second)

	last, err := r.ReadCluster(3)
	require.NoError(t, err)
	require.Equal(t, bits[3*clusterSize:], last)

	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, bits, all)
}

func TestFileWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "KRK.gbb")
	require.NoError(t, WriteFile(path, testBits(100), 800, 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "KRK.gbb", entries[0].Name())
}

// TestFileBadMagicIsFormatError checks the fail-to-load path: a file whose
// magic words don't match must surface as a FormatError, not a silent
// garbage read.
func TestFileBadMagicIsFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gbb")

	var words [headerWords]uint32
	words[0] = 0xDEADBEEF
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, words))
	require.NoError(t, f.Close())

	_, err = OpenReader(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, path, fe.Path)
}

func TestFileMissingIsNotFormatError(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "absent.gbb"))
	require.Error(t, err)
	var fe *FormatError
	require.False(t, errors.As(err, &fe), "a missing file is an I/O condition, not a format error")
}

func TestFileClusterIndexOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KNK.gbb")
	require.NoError(t, WriteFile(path, testBits(64), 512, 0))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadCluster(5)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

// TestBitbaseSetGetBits checks the in-memory bit array addressing.
func TestBitbaseSetGetBits(t *testing.T) {
	sig, ok := material.ParseSignature("KQK")
	require.True(t, ok)
	bb := NewInMemory(LayoutFor(sig))

	for _, idx := range []uint64{0, 1, 7, 8, 63, bb.Size() - 1} {
		bit, err := bb.GetBit(idx)
		require.NoError(t, err)
		require.False(t, bit)

		bb.SetBit(idx, true)
		bit, err = bb.GetBit(idx)
		require.NoError(t, err)
		require.True(t, bit)
	}

	_, err := bb.GetBit(bb.Size())
	require.Error(t, err)
}

// TestBitbaseDiskBackedMatchesInMemory stores an in-memory bitbase to disk
// and re-reads every set bit through the cluster-cache path.
func TestBitbaseDiskBackedMatchesInMemory(t *testing.T) {
	sig, ok := material.ParseSignature("KQK")
	require.True(t, ok)
	layout := LayoutFor(sig)

	mem := NewInMemory(layout)
	setIdx := []uint64{3, 1000, 40_000}
	for _, idx := range setIdx {
		mem.SetBit(idx, true)
	}

	path := filepath.Join(t.TempDir(), "KQK.gbb")
	require.NoError(t, mem.StoreTo(path, 2048))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	disk := OpenOnDisk(layout, r, NewClusterCache(16, 0), uint64(sig))
	for i := uint64(0); i < mem.Size(); i += 7 {
		want, err := mem.GetBit(i)
		require.NoError(t, err)
		got, err := disk.GetBit(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "bit %d", i)
	}
}
