package bitbase

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// File format constants, matching the on-disk layout's
// header layout: two magic words, a version, a compression id, the
// uncompressed cluster size in bytes, the cluster count, and the total bit
// count split across two 32-bit words (for a header that never needs a
// 64-bit-unaligned field).
const (
	magic1 = 0x4C504151
	magic2 = 0x42494241

	currentVersion = 1

	compressionNone = 0
	compressionZstd = 1

	defaultClusterSize = 16 * 1024 // bytes, uncompressed

	headerWords = 10
	headerSize  = headerWords * 4
)

// Header is the decoded form of the fixed 40-byte (headerSize) prologue of
// a bitbase file.
type Header struct {
	Version        uint32
	Compression    uint32
	ClusterSize    uint32
	ClusterCount   uint32
	TotalBits      uint64
}

func (h Header) encode() [headerWords]uint32 {
	return [headerWords]uint32{
		magic1,
		magic2,
		h.Version,
		h.Compression,
		h.ClusterSize,
		h.ClusterCount,
		uint32(h.TotalBits),
		uint32(h.TotalBits >> 32),
		0, 0,
	}
}

func decodeHeader(words [headerWords]uint32) (Header, error) {
	if words[0] != magic1 || words[1] != magic2 {
		return Header{}, &FormatError{Reason: "bad magic"}
	}
	if words[2] != currentVersion {
		return Header{}, &FormatError{Reason: fmt.Sprintf("unsupported version %d", words[2])}
	}
	return Header{
		Version:      words[2],
		Compression:  words[3],
		ClusterSize:  words[4],
		ClusterCount: words[5],
		TotalBits:    uint64(words[6]) | uint64(words[7])<<32,
	}, nil
}

// WriteFile compresses bits (a packed bit array of length totalBits, 1 bit
// per index) into clusters of clusterSize uncompressed bytes each, and
// atomically writes the whole file to path: it writes to path+".tmp" first
// and renames over the destination only once the temp file is flushed, so
// a crash mid-write never leaves a corrupt file at the final path.
func WriteFile(path string, bits []byte, totalBits uint64, clusterSize int) (err error) {
	if clusterSize <= 0 {
		clusterSize = defaultClusterSize
	}
	clusterCount := (len(bits) + clusterSize - 1) / clusterSize
	if clusterCount == 0 {
		clusterCount = 1
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("bitbase: create compressor: %w", err)
	}
	defer enc.Close()

	compressed := make([][]byte, clusterCount)
	for i := 0; i < clusterCount; i++ {
		start := i * clusterSize
		end := start + clusterSize
		if end > len(bits) {
			end = len(bits)
		}
		compressed[i] = enc.EncodeAll(bits[start:end], nil)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("bitbase: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	header := Header{
		Version:      currentVersion,
		Compression:  compressionZstd,
		ClusterSize:  uint32(clusterSize),
		ClusterCount: uint32(clusterCount),
		TotalBits:    totalBits,
	}
	words := header.encode()
	if err = binary.Write(f, binary.LittleEndian, words); err != nil {
		return fmt.Errorf("bitbase: write header: %w", err)
	}

	offsets := make([]uint64, clusterCount+1)
	offset := uint64(headerSize) + uint64(clusterCount+1)*8
	for i, c := range compressed {
		offsets[i] = offset
		offset += uint64(len(c))
	}
	offsets[clusterCount] = offset

	if err = binary.Write(f, binary.LittleEndian, offsets); err != nil {
		return fmt.Errorf("bitbase: write offsets: %w", err)
	}
	for _, c := range compressed {
		if _, err = f.Write(c); err != nil {
			return fmt.Errorf("bitbase: write cluster: %w", err)
		}
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("bitbase: sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("bitbase: close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("bitbase: rename into place: %w", err)
	}
	return nil
}

// Reader reads clusters from an on-disk bitbase file on demand.
type Reader struct {
	path    string
	f       *os.File
	header  Header
	offsets []uint64
	dec     *zstd.Decoder
}

// OpenReader opens path, validates its header and offset table, and
// returns a Reader ready to serve ReadCluster calls.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bitbase: open %s: %w", filepath.Base(path), err)
	}
	var words [headerWords]uint32
	if err := binary.Read(f, binary.LittleEndian, &words); err != nil {
		f.Close()
		return nil, fmt.Errorf("bitbase: read header: %w", err)
	}
	header, err := decodeHeader(words)
	if err != nil {
		f.Close()
		fe := err.(*FormatError)
		fe.Path = path
		return nil, fe
	}
	offsets := make([]uint64, header.ClusterCount+1)
	if err := binary.Read(f, binary.LittleEndian, offsets); err != nil {
		f.Close()
		return nil, fmt.Errorf("bitbase: read offsets: %w", err)
	}
	var dec *zstd.Decoder
	if header.Compression == compressionZstd {
		dec, err = zstd.NewReader(nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("bitbase: create decompressor: %w", err)
		}
	}
	return &Reader{path: path, f: f, header: header, offsets: offsets, dec: dec}, nil
}

// Close releases the Reader's open file handle.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.f.Close()
}

// Header returns the file's decoded header.
func (r *Reader) Header() Header { return r.header }

// ReadCluster reads and decompresses cluster i, returning up to
// header.ClusterSize bytes (the last cluster may be shorter).
func (r *Reader) ReadCluster(i int) ([]byte, error) {
	if i < 0 || i >= int(r.header.ClusterCount) {
		return nil, &FormatError{Path: r.path, Reason: "cluster index out of range"}
	}
	start := r.offsets[i]
	end := r.offsets[i+1]
	if end < start {
		return nil, &FormatError{Path: r.path, Reason: "corrupt offset table"}
	}
	raw := make([]byte, end-start)
	if _, err := r.f.ReadAt(raw, int64(start)); err != nil {
		return nil, fmt.Errorf("bitbase: read cluster %d: %w", i, err)
	}
	if r.header.Compression == compressionNone {
		return raw, nil
	}
	out, err := r.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, &FormatError{Path: r.path, Reason: fmt.Sprintf("cluster %d: %v", i, err)}
	}
	return out, nil
}

// ReadAll decompresses every cluster and concatenates them into one buffer.
func (r *Reader) ReadAll() ([]byte, error) {
	out := make([]byte, 0, r.header.ClusterSize*r.header.ClusterCount)
	for i := 0; i < int(r.header.ClusterCount); i++ {
		c, err := r.ReadCluster(i)
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}

var _ io.Closer = (*Reader)(nil)
