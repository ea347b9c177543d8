package core

// bson_codec.go gives Hash and Address custom BSON encodings so the store
// package can persist core documents directly without field-by-field
// conversion, storing both as their hex string form (matching their JSON
// representation) rather than the driver's default fixed-size-array codec.

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func (h Hash) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(h.Hex())
}

func (h *Hash) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := bson.UnmarshalValue(t, data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (a Address) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(a.Hex())
}

func (a *Address) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := bson.UnmarshalValue(t, data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
