package types

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no record has the given id.
var ErrNotFound = errors.New("not found")

// Entity is a record with a numeric id that a repository can assign.
type Entity[T any] interface {
	EntityID() int64
	WithID(id int64) T
}

// Repository is the CRUD shape shared by locally persisted and remote
// collections, so moving an entity from one backend to the other only
// swaps the implementation.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id int64, item T) (T, error)
	Delete(ctx context.Context, id int64) error
}
