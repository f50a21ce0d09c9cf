package repository

import (
	"bytes"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"goodwe-gateway/internal/domain"
)

const powerDataCollection = "power_data"

// MongoPowerDataRepository guarda cada respuesta del portal como documento.
type MongoPowerDataRepository struct {
	collection *mongo.Collection
}

func NewMongoPowerDataRepository(db *mongo.Database) *MongoPowerDataRepository {
	return &MongoPowerDataRepository{collection: db.Collection(powerDataCollection)}
}

func (r *MongoPowerDataRepository) Append(ctx context.Context, record domain.PowerDataRecord) error {
	_, err := r.collection.InsertOne(ctx, powerDataDocument(record))
	return err
}

// EnsureIndexes crea el índice de consulta por usuario y fecha.
func (r *MongoPowerDataRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "captured_at", Value: -1}},
	})
	return err
}

// powerDataDocument conserva el payload como documento anidado cuando es un objeto JSON
// y como string cuando no lo es.
func powerDataDocument(record domain.PowerDataRecord) bson.D {
	var data any = string(record.Payload)
	trimmed := bytes.TrimSpace(record.Payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var parsed bson.D
		if err := bson.UnmarshalExtJSON(trimmed, false, &parsed); err == nil {
			data = parsed
		}
	}
	return bson.D{
		{Key: "_id", Value: record.ID},
		{Key: "user_id", Value: record.UserID},
		{Key: "device_id", Value: record.DeviceID},
		{Key: "data", Value: data},
		{Key: "captured_at", Value: record.CapturedAt.UTC().Truncate(time.Millisecond)},
	}
}
