package vector

import "errors"

var (
	// ErrNotFound is returned when a point is not found in the vector store.
	ErrNotFound = errors.New("point not found")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrRecursivePayload is returned when a payload references itself or
	// nests too deeply to encode.
	ErrRecursivePayload = errors.New("recursive payload")

	// ErrCollectionMissing is returned when an operation targets a collection
	// that has not been created.
	ErrCollectionMissing = errors.New("collection does not exist")
)
