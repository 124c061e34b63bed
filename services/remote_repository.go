package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labdesk/v2/internal/types"
)

// RemoteRepository is the API-backed counterpart of core.LocalRepository. T is
// the record as the server returns it; Create and Update send payload(T).
type RemoteRepository[T types.Entity[T]] struct {
	api      *APIClient
	basePath string
	payload  func(T) any
}

func NewRemoteRepository[T types.Entity[T]](api *APIClient, basePath string, payload func(T) any) *RemoteRepository[T] {
	if payload == nil {
		payload = func(item T) any { return item }
	}
	return &RemoteRepository[T]{
		api:      api,
		basePath: strings.TrimRight(basePath, "/") + "/",
		payload:  payload,
	}
}

func (r *RemoteRepository[T]) itemPath(id int64) string {
	return fmt.Sprintf("%s%d", r.basePath, id)
}

func (r *RemoteRepository[T]) List(ctx context.Context) ([]T, error) {
	return r.list(ctx, Request{Method: http.MethodGet, Path: r.basePath})
}

func (r *RemoteRepository[T]) list(ctx context.Context, req Request) ([]T, error) {
	result, err := r.api.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if err := result.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RemoteRepository[T]) Get(ctx context.Context, id int64) (T, error) {
	return r.one(ctx, Request{Method: http.MethodGet, Path: r.itemPath(id)})
}

func (r *RemoteRepository[T]) Create(ctx context.Context, item T) (T, error) {
	return r.one(ctx, Request{
		Method:       http.MethodPost,
		Path:         r.basePath,
		Body:         r.payload(item),
		RequiresBody: true,
	})
}

func (r *RemoteRepository[T]) Update(ctx context.Context, id int64, item T) (T, error) {
	return r.one(ctx, Request{
		Method:       http.MethodPut,
		Path:         r.itemPath(id),
		Body:         r.payload(item),
		RequiresBody: true,
	})
}

func (r *RemoteRepository[T]) Delete(ctx context.Context, id int64) error {
	_, err := r.api.Call(ctx, Request{Method: http.MethodDelete, Path: r.itemPath(id)})
	return err
}

func (r *RemoteRepository[T]) one(ctx context.Context, req Request) (T, error) {
	var item T
	result, err := r.api.Call(ctx, req)
	if err != nil {
		return item, err
	}
	if err := result.Decode(&item); err != nil {
		return item, err
	}
	return item, nil
}
