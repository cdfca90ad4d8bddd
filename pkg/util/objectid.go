package util

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseObjectID converts a hex string to a MongoDB ObjectID.
// Returns primitive.NilObjectID and an error if the string is invalid.
func ParseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid object id format: %w", err)
	}
	return objID, nil
}

// ParseOptionalObjectID returns nil for an empty string.
func ParseOptionalObjectID(id string) (*primitive.ObjectID, error) {
	if id == "" {
		return nil, nil
	}
	objID, err := ParseObjectID(id)
	if err != nil {
		return nil, err
	}
	return &objID, nil
}

// IsValidObjectID returns true if the provided string is a valid ObjectID hex.
func IsValidObjectID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// ParseObjectIDs parses every id, failing on the first invalid one.
func ParseObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := ParseObjectID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, objID)
	}
	return out, nil
}
