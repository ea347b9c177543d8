package store

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// bsonD builds a bson.D from alternating field/direction pairs, e.g.
// bsonD("height", 1) or bsonD("sessionId", 1, "sequenceIndex", 1).
func bsonD(kv ...interface{}) bson.D {
	d := bson.D{}
	for i := 0; i+1 < len(kv); i += 2 {
		d = append(d, bson.E{Key: kv[i].(string), Value: kv[i+1]})
	}
	return d
}

func indexModel(keys bson.D, unique bool) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(unique),
	}
}
