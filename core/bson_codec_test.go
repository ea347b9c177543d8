package core

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

type bsonCodecFixture struct {
	H Hash
	A Address
}

func TestHashAndAddressBSONRoundTrip(t *testing.T) {
	in := bsonCodecFixture{H: Hash{0x01, 0x02, 0x03}, A: Address{0x0A, 0x0B}}
	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out bsonCodecFixture
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.H != in.H {
		t.Fatalf("expected hash round trip, got %x want %x", out.H, in.H)
	}
	if out.A != in.A {
		t.Fatalf("expected address round trip, got %x want %x", out.A, in.A)
	}
}

func TestHashBSONStoresHexString(t *testing.T) {
	h := Hash{0xAB, 0xCD}
	typ, data, err := h.MarshalBSONValue()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded string
	if err := bson.UnmarshalValue(typ, data, &decoded); err != nil {
		t.Fatalf("decode raw bson value: %v", err)
	}
	if decoded != h.Hex() {
		t.Fatalf("expected stored form %q, got %q", h.Hex(), decoded)
	}
}

func TestAddressBSONRejectsInvalidHex(t *testing.T) {
	typ, data, err := bson.MarshalValue("not-a-valid-address")
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}
	var a Address
	if err := a.UnmarshalBSONValue(typ, data); err == nil {
		t.Fatal("expected an error decoding an invalid address string")
	}
}

func TestHashBSONEmptyStringDecodesToZeroHash(t *testing.T) {
	typ, data, err := bson.MarshalValue("")
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}
	h := Hash{0xFF}
	if err := h.UnmarshalBSONValue(typ, data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h != ZeroHash {
		t.Fatal("expected empty string to decode to the zero hash")
	}
}
