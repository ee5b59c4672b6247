package storage

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID validates a record identifier received at the boundary. Only a
// well-formed identifier may become a lookup filter.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid record id %q: %w", raw, err)
	}
	return id, nil
}

// NewID generates a fresh record identifier
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ByID builds the filter selecting a single record by identifier
func ByID(id primitive.ObjectID) Filter {
	return Filter{FieldID: id}
}
