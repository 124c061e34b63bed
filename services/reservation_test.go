package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdesk/v2/internal/types"
)

func sampleInput(lab string, start time.Time) types.ReservationInput {
	return types.ReservationInput{
		LabName:    lab,
		ReservedBy: "Ana Pérez",
		Purpose:    "Titration practice",
		StartTime:  types.NewTimestamp(start),
		Active:     true,
	}
}

func TestReservationService_StartTimeWireFormat(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies <- data
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"lab_name":"Lab A","reserved_by":"Ana Pérez","purpose":"Titration practice",
			"start_time":"2025-03-01T14:00:00","active":true,"created_at":"2025-02-20T09:30:00.123456","owner_id":1}`))
	}))
	defer srv.Close()

	service := NewReservationService(NewAPIClient(srv.URL, &memTokenStore{token: "tok"}))
	local := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	created, err := service.CreateReservation(context.Background(), sampleInput("Lab A", local))
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &sent))
	assert.Equal(t, "2025-03-01T14:00:00.000Z", sent["start_time"])
	assert.Equal(t, "Lab A", sent["lab_name"])
	assert.NotContains(t, sent, "id")
	assert.NotContains(t, sent, "owner_id")

	assert.Equal(t, int64(7), created.ID)
	assert.True(t, created.StartTime.Equal(local))
	assert.Equal(t, "2025-03-01T14:00:00.000Z", created.StartTime.String())
	assert.Equal(t, 123, created.CreatedAt.Nanosecond()/int(time.Millisecond))
}

func TestReservationService_CRUD(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	created, err := service.CreateReservation(ctx, sampleInput("Lab A", start))
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Positive(t, created.OwnerID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.StartTime.Equal(start))

	got, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Purpose, got.Purpose)

	in := created.Input()
	in.Purpose = "Spectroscopy"
	in.Active = false
	updated, err := service.UpdateReservation(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Spectroscopy", updated.Purpose)
	assert.False(t, updated.Active)

	items, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	cached, ok := service.Cached()
	require.True(t, ok)
	assert.Equal(t, items, cached)

	require.NoError(t, service.Delete(ctx, created.ID))
	cached, ok = service.Cached()
	assert.True(t, ok)
	assert.Empty(t, cached)

	items, err = service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = service.Get(ctx, created.ID)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.Status)
	assert.Equal(t, "Reserva no encontrada o sin permisos", UserMessage(err))
}

func TestReservationService_GenericUpdateSendsInput(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)
	ctx := context.Background()

	created, err := service.Create(ctx, types.Reservation{
		LabName:    "Lab B",
		ReservedBy: "Luis Soto",
		Purpose:    "Calibration",
		StartTime:  types.NewTimestamp(time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)),
		Active:     true,
	})
	require.NoError(t, err)

	created.LabName = "Lab C"
	updated, err := service.Update(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "Lab C", updated.LabName)
	assert.Equal(t, created.OwnerID, updated.OwnerID)
}

func TestReservationService_ValidationIsLocal(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)

	_, err := service.CreateReservation(context.Background(), types.ReservationInput{LabName: "AB", Purpose: "x"})
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Problems, 4)
	assert.Zero(t, s.api.Requests())
}

func TestReservationService_ListFiltered(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)
	ctx := context.Background()

	for _, in := range []types.ReservationInput{
		sampleInput("Lab Química", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		sampleInput("Lab Física", time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)),
		sampleInput("Lab Química", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)),
	} {
		_, err := service.CreateReservation(ctx, in)
		require.NoError(t, err)
	}

	byLab, err := service.ListFiltered(ctx, types.ReservationFilter{LabName: "química"})
	require.NoError(t, err)
	assert.Len(t, byLab, 2)

	byDay, err := service.ListFiltered(ctx, types.ReservationFilter{StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, byDay, 2)

	both, err := service.ListFiltered(ctx, types.ReservationFilter{LabName: "Química", StartDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, 2, both[0].StartTime.Day())

	_, ok := service.Cached()
	assert.False(t, ok)

	all, err := service.ListFiltered(ctx, types.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	_, ok = service.Cached()
	assert.True(t, ok)
}

func TestReservationService_PopularTimes(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)
	ctx := context.Background()

	analysis, err := service.PopularTimes(ctx)
	require.NoError(t, err)
	assert.Empty(t, analysis.PopularHours)
	assert.Empty(t, analysis.PopularLabs)

	for _, in := range []types.ReservationInput{
		sampleInput("Lab A", time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)),
		sampleInput("Lab A", time.Date(2025, 3, 2, 14, 0, 0, 0, time.UTC)),
		sampleInput("Lab B", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)),
	} {
		_, err := service.CreateReservation(ctx, in)
		require.NoError(t, err)
	}

	analysis, err = service.PopularTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PopularHour{{Hour: 9, Count: 1}, {Hour: 14, Count: 2}}, analysis.PopularHours)
	assert.Equal(t, []types.PopularLab{{LabName: "Lab A", Count: 2}, {LabName: "Lab B", Count: 1}}, analysis.PopularLabs)
}

func TestReservationService_DeleteMissing(t *testing.T) {
	s := newStack(t, true)
	service := NewReservationService(s.client)

	err := service.Delete(context.Background(), 42)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.Status)
}

func TestCountActive(t *testing.T) {
	items := []types.Reservation{{Active: true}, {Active: false}, {Active: true}}
	assert.Equal(t, 2, CountActive(items))
	assert.Zero(t, CountActive(nil))
}
