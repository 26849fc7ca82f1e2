package service

import (
	"github.com/google/uuid"
)

const batchPrefix = "imp_"

// NewBatchID returns a time-ordered import batch tag with a random tail.
func NewBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return batchPrefix + uuid.NewString()
	}
	return batchPrefix + id.String()
}
