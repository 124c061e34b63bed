package services

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/labdesk/v2/internal/types"
)

const (
	reservationsPath = "/reservations/"
	popularTimesPath = "/reservations/analysis/popular-times"
)

// ReservationService handles reservation operations against the API and
// keeps the last unfiltered listing for the dashboard.
type ReservationService struct {
	*RemoteRepository[types.Reservation]

	api *APIClient

	mu     sync.Mutex
	cached []types.Reservation
}

var _ types.Repository[types.Reservation] = (*ReservationService)(nil)

func NewReservationService(api *APIClient) *ReservationService {
	return &ReservationService{
		RemoteRepository: NewRemoteRepository(api, reservationsPath, func(r types.Reservation) any {
			return r.Input()
		}),
		api: api,
	}
}

// List fetches the caller's reservations and refreshes the cache.
func (s *ReservationService) List(ctx context.Context) ([]types.Reservation, error) {
	items, err := s.RemoteRepository.List(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached = items
	s.mu.Unlock()
	return items, nil
}

// Cached returns the last listing, if any, without a network call.
func (s *ReservationService) Cached() ([]types.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return nil, false
	}
	return append([]types.Reservation(nil), s.cached...), true
}

// ClearCache drops cached remote data; the session calls it on teardown.
func (s *ReservationService) ClearCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// ListFiltered lists reservations whose lab name contains filter.LabName and
// whose start falls on filter.StartDate, when those are set.
func (s *ReservationService) ListFiltered(ctx context.Context, filter types.ReservationFilter) ([]types.Reservation, error) {
	query := url.Values{}
	if filter.LabName != "" {
		query.Set("lab_name", filter.LabName)
	}
	if !filter.StartDate.IsZero() {
		query.Set("start_date", filter.StartDate.Format("2006-01-02"))
	}
	if len(query) == 0 {
		return s.List(ctx)
	}
	return s.list(ctx, Request{Method: http.MethodGet, Path: reservationsPath, Query: query})
}

// CreateReservation validates in before sending it.
func (s *ReservationService) CreateReservation(ctx context.Context, in types.ReservationInput) (types.Reservation, error) {
	if err := in.Validate(); err != nil {
		return types.Reservation{}, err
	}
	return s.one(ctx, Request{Method: http.MethodPost, Path: reservationsPath, Body: in, RequiresBody: true})
}

// UpdateReservation replaces the writable fields of reservation id.
func (s *ReservationService) UpdateReservation(ctx context.Context, id int64, in types.ReservationInput) (types.Reservation, error) {
	if err := in.Validate(); err != nil {
		return types.Reservation{}, err
	}
	return s.one(ctx, Request{Method: http.MethodPut, Path: s.itemPath(id), Body: in, RequiresBody: true})
}

// Delete removes reservation id and drops it from the cache.
func (s *ReservationService) Delete(ctx context.Context, id int64) error {
	if err := s.RemoteRepository.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	kept := s.cached[:0:0]
	for _, r := range s.cached {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if s.cached != nil {
		s.cached = kept
	}
	s.mu.Unlock()
	return nil
}

// PopularTimes returns reservation counts per hour and per lab.
func (s *ReservationService) PopularTimes(ctx context.Context) (*types.PopularTimes, error) {
	result, err := s.api.Call(ctx, Request{Method: http.MethodGet, Path: popularTimesPath})
	if err != nil {
		return nil, err
	}
	analysis := &types.PopularTimes{
		PopularHours: []types.PopularHour{},
		PopularLabs:  []types.PopularLab{},
	}
	if err := result.Decode(analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// CountActive counts active reservations in items.
func CountActive(items []types.Reservation) int {
	n := 0
	for _, r := range items {
		if r.Active {
			n++
		}
	}
	return n
}
