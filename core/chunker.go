package core

// chunker.go cuts a session byte stream into fixed-size, Zstd-compressed
// chunks and writes them to local disk (spec §4.1, C1). Grounded on the
// teacher's streaming/worker style (core/blockchain_compression.go's use of
// klauspost/compress) generalized from block compression to per-chunk
// session compression.

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const (
	// ChunkMinBytes and ChunkMaxBytes bound the configurable target chunk
	// size (spec §4.1). Values outside this range are clamped.
	ChunkMinBytes = 8 << 20
	ChunkMaxBytes = 16 << 20

	compressionLevel = zstd.SpeedDefault // level 3 equivalent
)

// ChunkMetadata describes one persisted, compressed-then-encrypted chunk
// (spec §3). PreEncryptionHash is the SHA-256 of the plaintext bytes read
// back from disk by the chunker/encryptor pipeline; EncryptedHash (set by
// the session orchestrator after encryption) is the BLAKE3 of the
// ciphertext file and is what the Merkle builder leaves over.
type ChunkMetadata struct {
	SessionID         string  `json:"sessionId" bson:"sessionId"`
	SequenceIndex     int     `json:"sequenceIndex" bson:"sequenceIndex"`
	PreEncryptionHash Hash    `json:"preEncryptionHash" bson:"preEncryptionHash"`
	EncryptedHash     *Hash   `json:"encryptedHash,omitempty" bson:"encryptedHash,omitempty"`
	OriginalSize      int64   `json:"originalSize" bson:"originalSize"`
	CompressedSize    int64   `json:"compressedSize" bson:"compressedSize"`
	EncryptedSize     int64   `json:"encryptedSize" bson:"encryptedSize"`
	CompressionRatio  float64 `json:"compressionRatio" bson:"compressionRatio"`
	LocalPath         string  `json:"localPath" bson:"localPath"`
	CreatedAtUnixNano int64   `json:"createdAtUnixNano" bson:"createdAtUnixNano"`
}

// Chunker cuts and compresses session byte streams (spec §4.1).
type Chunker struct {
	storageDir string
}

// NewChunker constructs a Chunker writing artifacts under storageDir.
func NewChunker(storageDir string) *Chunker {
	return &Chunker{storageDir: storageDir}
}

// clampTargetSize enforces spec §4.1's edge case: target sizes outside
// [8MiB, 16MiB] are clamped rather than rejected.
func clampTargetSize(target int64) int64 {
	if target < ChunkMinBytes {
		return ChunkMinBytes
	}
	if target > ChunkMaxBytes {
		return ChunkMaxBytes
	}
	return target
}

func chunkFileName(sessionID string, index int) string {
	return fmt.Sprintf("%s_chunk_%06d.zst", sessionID, index)
}

// ChunkBuffer splits an in-memory byte stream into fixed-size chunks (the
// last chunk may be smaller), compresses each with Zstd, and writes them to
// disk. An empty input yields zero chunks (spec §4.1).
func (c *Chunker) ChunkBuffer(sessionID string, data []byte, targetSize int64) ([]ChunkMetadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	targetSize = clampTargetSize(targetSize)
	if err := os.MkdirAll(c.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("chunker: mkdir: %w", err)
	}

	var out []ChunkMetadata
	for idx, off := 0, int64(0); off < int64(len(data)); idx, off = idx+1, off+targetSize {
		end := off + targetSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		plain := data[off:end]
		meta, err := c.writeChunk(sessionID, idx, plain)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

// ChunkStream accumulates bytes read from r until the target size is
// reached, emitting a ChunkMetadata per completed chunk via the callback.
// The final partial buffer, if any, is emitted as the last chunk. This is
// the cooperative-generator analogue of spec §4.1's chunkStream, modeled as
// a bounded-buffer producer per design note §9.
func (c *Chunker) ChunkStream(sessionID string, r io.Reader, targetSize int64, emit func(ChunkMetadata) error) error {
	targetSize = clampTargetSize(targetSize)
	if err := os.MkdirAll(c.storageDir, 0o755); err != nil {
		return fmt.Errorf("chunker: mkdir: %w", err)
	}
	buf := make([]byte, 0, targetSize)
	readBuf := make([]byte, 64*1024)
	idx := 0
	for {
		n, err := r.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
			for int64(len(buf)) >= targetSize {
				meta, werr := c.writeChunk(sessionID, idx, buf[:targetSize])
				if werr != nil {
					return werr
				}
				if err := emit(*meta); err != nil {
					return err
				}
				buf = append([]byte{}, buf[targetSize:]...)
				idx++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("chunker: read: %w", err)
		}
	}
	if len(buf) > 0 {
		meta, werr := c.writeChunk(sessionID, idx, buf)
		if werr != nil {
			return werr
		}
		if err := emit(*meta); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chunker) writeChunk(sessionID string, idx int, plain []byte) (*ChunkMetadata, error) {
	preHash := sha256.Sum256(plain)

	path := filepath.Join(c.storageDir, chunkFileName(sessionID, idx))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("chunker: create %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(compressionLevel))
	if err != nil {
		return nil, fmt.Errorf("chunker: zstd writer: %w", err)
	}
	if _, err := enc.Write(plain); err != nil {
		enc.Close()
		return nil, fmt.Errorf("chunker: compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("chunker: flush: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	compressedSize := info.Size()
	ratio := 0.0
	if len(plain) > 0 {
		ratio = float64(compressedSize) / float64(len(plain))
	}

	return &ChunkMetadata{
		SessionID:         sessionID,
		SequenceIndex:     idx,
		PreEncryptionHash: preHash,
		OriginalSize:      int64(len(plain)),
		CompressedSize:    compressedSize,
		CompressionRatio:  ratio,
		LocalPath:         path,
	}, nil
}

// ReadChunk decompresses the chunk named by meta and re-verifies its
// SHA-256 against the stored pre-encryption hash, failing with an
// IntegrityError on mismatch (spec §4.1).
func (c *Chunker) ReadChunk(meta ChunkMetadata) ([]byte, error) {
	f, err := os.Open(meta.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("chunker: open %s: %w", meta.LocalPath, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("chunker: zstd reader: %w", err)
	}
	defer dec.Close()

	plain, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("chunker: decompress: %w", err)
	}
	got := sha256.Sum256(plain)
	if got != meta.PreEncryptionHash {
		return nil, integrityErrorf("chunker: hash mismatch for session %s chunk %d", meta.SessionID, meta.SequenceIndex)
	}
	return plain, nil
}

// CleanupSession deletes every chunk artifact for sessionID and returns the
// count removed (spec §4.1).
func (c *Chunker) CleanupSession(sessionID string) (int, error) {
	pattern := filepath.Join(c.storageDir, sessionID+"_chunk_*.zst")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return count, err
		}
		count++
	}
	return count, nil
}
