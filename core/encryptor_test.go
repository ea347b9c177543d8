package core

import (
	"bytes"
	"os"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor(t.TempDir(), bytes.Repeat([]byte{0x01}, masterKeySize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plaintext := []byte("some session plaintext bytes")
	ref, err := e.EncryptChunk(plaintext, 0, "sess-1", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := e.DecryptChunk(ref)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round-tripped plaintext does not match original")
	}
}

func TestEncryptedFileLayout(t *testing.T) {
	e, err := NewEncryptor(t.TempDir(), bytes.Repeat([]byte{0x02}, masterKeySize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, err := e.EncryptChunk([]byte("payload"), 3, "sess-2", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := os.ReadFile(ref.FilePath)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if len(raw) < saltSize+nonceSize+tagSize {
		t.Fatalf("file too short for fixed header: %d bytes", len(raw))
	}
}

func TestDecryptChunkTamperedCiphertext(t *testing.T) {
	e, err := NewEncryptor(t.TempDir(), bytes.Repeat([]byte{0x03}, masterKeySize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, err := e.EncryptChunk([]byte("1 MiB worth of stand-in plaintext"), 0, "sess-3", "")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := os.ReadFile(ref.FilePath)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(ref.FilePath, raw, 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}
	if _, err := e.DecryptChunk(ref); err == nil {
		t.Fatal("expected integrity error after tampering with ciphertext")
	}
}

func TestNewEncryptorRejectsWrongKeySize(t *testing.T) {
	if _, err := NewEncryptor(t.TempDir(), []byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for undersized master key")
	}
}

func TestRotateMasterKeyClearsCache(t *testing.T) {
	e, err := NewEncryptor(t.TempDir(), bytes.Repeat([]byte{0x04}, masterKeySize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// populate the derived-key cache
	if _, err := e.EncryptChunk([]byte("warm the cache"), 0, "sess-4", ""); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(e.cache) == 0 {
		t.Fatal("expected derived-key cache to be populated")
	}

	if _, err := e.RotateMasterKey(bytes.Repeat([]byte{0x05}, masterKeySize)); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if len(e.cache) != 0 {
		t.Fatal("expected derived-key cache to be cleared after rotation")
	}

	// new encryptions under the rotated key still round-trip.
	ref, err := e.EncryptChunk([]byte("after rotation"), 1, "sess-4", "")
	if err != nil {
		t.Fatalf("encrypt after rotation: %v", err)
	}
	got, err := e.DecryptChunk(ref)
	if err != nil {
		t.Fatalf("decrypt after rotation: %v", err)
	}
	if string(got) != "after rotation" {
		t.Fatal("round-trip after rotation failed")
	}
}
