package core

// encryptor.go performs per-chunk authenticated encryption with
// XChaCha20-Poly1305, deriving a per-chunk key from a master key via
// HKDF (hash = BLAKE2b-512) (spec §4.2, C2). Grounded on the teacher's
// keyed-hash / derived-key patterns in core/compliance.go (HKDF-style
// commitment derivation) generalized to full AEAD chunk encryption.

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	saltSize  = 32
	nonceSize = chacha20poly1305.NonceSizeX // 24
	tagSize   = chacha20poly1305.Overhead   // 16

	masterKeySize = 32
)

// EncryptedChunkRef references an on-disk encrypted chunk file, whose first
// 72 bytes are always [salt(32) | nonce(24) | tag(16)] followed by
// ciphertext (spec §4.2, §6.4, §8 invariant 8).
type EncryptedChunkRef struct {
	SessionID string          `json:"sessionId"`
	ChunkID   int             `json:"chunkId"`
	KeyID     string          `json:"keyId,omitempty"`
	Nonce     [nonceSize]byte `json:"-"`
	Tag       [tagSize]byte   `json:"-"`
	FilePath  string          `json:"filePath"`
	Timestamp time.Time       `json:"timestamp"`
}

type derivedKeyCacheKey struct {
	sessionID string
	chunkID   int
	saltHex   string
}

// Encryptor derives per-chunk keys from a rotatable master key and performs
// XChaCha20-Poly1305 encryption/decryption (spec §4.2).
type Encryptor struct {
	mu         sync.RWMutex
	masterKey  [masterKeySize]byte
	storageDir string
	cache      map[derivedKeyCacheKey][]byte
}

// NewEncryptor constructs an Encryptor. If masterKey is nil, a random
// 32-byte key is generated (spec §4.2).
func NewEncryptor(storageDir string, masterKey []byte) (*Encryptor, error) {
	e := &Encryptor{storageDir: storageDir, cache: make(map[derivedKeyCacheKey][]byte)}
	if masterKey == nil {
		if _, err := io.ReadFull(rand.Reader, e.masterKey[:]); err != nil {
			return nil, fmt.Errorf("encryptor: generate master key: %w", err)
		}
		return e, nil
	}
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("encryptor: master key must be %d bytes, got %d", masterKeySize, len(masterKey))
	}
	copy(e.masterKey[:], masterKey)
	return e, nil
}

func chunkInfo(sessionID string, chunkID int) []byte {
	return []byte(fmt.Sprintf("lucid-chunk-encryption:%s:%d", sessionID, chunkID))
}

func (e *Encryptor) deriveKey(sessionID string, chunkID int, salt []byte) []byte {
	key := derivedKeyCacheKey{sessionID: sessionID, chunkID: chunkID, saltHex: hex.EncodeToString(salt)}

	e.mu.RLock()
	if k, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return k
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if k, ok := e.cache[key]; ok {
		return k
	}
	r := hkdf.New(newBlake2b512, e.masterKey[:], salt, chunkInfo(sessionID, chunkID))
	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, derived); err != nil {
		panic(fmt.Sprintf("encryptor: hkdf derive: %v", err))
	}
	e.cache[key] = derived
	return derived
}

func chunkFilePath(storageDir, sessionID string, chunkID int) string {
	return fmt.Sprintf("%s/%s_chunk_%06d.enc", storageDir, sessionID, chunkID)
}

// EncryptChunk encrypts plaintext for (sessionID, chunkID), writing
// [salt|nonce|tag|ciphertext] to disk and returning a reference (spec §4.2).
func (e *Encryptor) EncryptChunk(plaintext []byte, chunkID int, sessionID string, keyID string) (*EncryptedChunkRef, error) {
	if err := os.MkdirAll(e.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("encryptor: mkdir: %w", err)
	}

	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, fmt.Errorf("encryptor: generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("encryptor: generate nonce: %w", err)
	}

	key := e.deriveKey(sessionID, chunkID, salt[:])
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("encryptor: init AEAD: %w", err)
	}

	sealed := aead.Seal(nil, nonce[:], plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	var tag [tagSize]byte
	copy(tag[:], sealed[len(sealed)-tagSize:])

	path := chunkFilePath(e.storageDir, sessionID, chunkID)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("encryptor: create %s: %w", path, err)
	}
	defer f.Close()

	for _, b := range [][]byte{salt[:], nonce[:], tag[:], ciphertext} {
		if _, err := f.Write(b); err != nil {
			return nil, fmt.Errorf("encryptor: write: %w", err)
		}
	}

	return &EncryptedChunkRef{
		SessionID: sessionID,
		ChunkID:   chunkID,
		KeyID:     keyID,
		Nonce:     nonce,
		Tag:       tag,
		FilePath:  path,
		Timestamp: time.Now().UTC(),
	}, nil
}

// DecryptChunk reads the on-disk layout, re-derives the key from the
// embedded salt, and verifies the Poly1305 tag, failing with an
// IntegrityError on mismatch (spec §4.2, §8 invariant 8).
func (e *Encryptor) DecryptChunk(ref *EncryptedChunkRef) ([]byte, error) {
	raw, err := os.ReadFile(ref.FilePath)
	if err != nil {
		return nil, fmt.Errorf("encryptor: read %s: %w", ref.FilePath, err)
	}
	if len(raw) < saltSize+nonceSize+tagSize {
		return nil, integrityErrorf("encryptor: truncated chunk file %s", ref.FilePath)
	}
	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	tag := raw[saltSize+nonceSize : saltSize+nonceSize+tagSize]
	ciphertext := raw[saltSize+nonceSize+tagSize:]

	key := e.deriveKey(ref.SessionID, ref.ChunkID, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("encryptor: init AEAD: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, integrityErrorf("encryptor: tag verification failed for %s: %v", ref.FilePath, err)
	}
	return plaintext, nil
}

// RotateMasterKey replaces the master key and clears the derived-key cache.
// The previous master key is not retained: a file written before rotation
// has its embedded salt combined with the new master key on the next read,
// which derives a different key, so DecryptChunk fails on it with an
// IntegrityError. Only files encrypted after rotation decrypt.
func (e *Encryptor) RotateMasterKey(newKey []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if newKey == nil {
		newKey = make([]byte, masterKeySize)
		if _, err := io.ReadFull(rand.Reader, newKey); err != nil {
			return nil, fmt.Errorf("encryptor: generate master key: %w", err)
		}
	}
	if len(newKey) != masterKeySize {
		return nil, fmt.Errorf("encryptor: master key must be %d bytes", masterKeySize)
	}
	copy(e.masterKey[:], newKey)
	e.cache = make(map[derivedKeyCacheKey][]byte)
	return newKey, nil
}

func newBlake2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(fmt.Sprintf("encryptor: blake2b init: %v", err))
	}
	return h
}
