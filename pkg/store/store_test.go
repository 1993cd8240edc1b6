package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChicagoDave/siteplanner/pkg/spec"
)

func f(v float64) *float64 { return &v }

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const square = `{"type":"Polygon","coordinates":[[[0,0],[100,0],[100,100],[0,100],[0,0]]]}`

func TestZoningRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	rec := spec.ZoningRecord{
		ZoneCode:       "RM-3",
		MaxFAR:         f(3),
		MaxCoveragePct: f(65),
		Setbacks:       spec.SetbackDef{Front: f(15)},
		PermittedUses:  []string{"residential"},
	}
	require.NoError(t, s.PutZoning(ctx, rec))

	got, err := s.Zoning(ctx, "RM-3")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Nil(t, got.MaxHeightFt, "unrecorded limits stay unrecorded")

	rec.MaxFAR = f(2.5)
	require.NoError(t, s.PutZoning(ctx, rec))
	got, err = s.Zoning(ctx, "RM-3")
	require.NoError(t, err)
	assert.Equal(t, 2.5, *got.MaxFAR)
}

func TestZoningNotFound(t *testing.T) {
	_, err := openMemory(t).Zoning(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
}

func TestPutZoningRequiresCode(t *testing.T) {
	assert.Error(t, openMemory(t).PutZoning(context.Background(), spec.ZoningRecord{}))
}

func TestParcelRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.PutParcel(ctx, spec.ParcelDef{ID: "p1", ZoneCode: "RM-3", Geometry: json.RawMessage(square)}))

	got, err := s.Parcel(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "RM-3", got.ZoneCode)
	assert.JSONEq(t, square, string(got.Geometry))

	_, err = s.Parcel(ctx, "p2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPutParcelRejectsBadGeometry(t *testing.T) {
	err := openMemory(t).PutParcel(context.Background(), spec.ParcelDef{ID: "p1", Geometry: json.RawMessage(`{"nope":1}`)})
	assert.Error(t, err)
}

func TestSelectedParcels(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.PutZoning(ctx, spec.ZoningRecord{ZoneCode: "RM-3", MaxFAR: f(3)}))
	require.NoError(t, s.PutParcel(ctx, spec.ParcelDef{ID: "p1", ZoneCode: "RM-3", Geometry: json.RawMessage(square)}))
	require.NoError(t, s.PutParcel(ctx, spec.ParcelDef{ID: "p2", ZoneCode: "UNZONED", Geometry: json.RawMessage(square)}))

	parcels, err := s.SelectedParcels(ctx, "p1", "p2")
	require.NoError(t, err)
	require.Len(t, parcels, 2)

	assert.Equal(t, "p1", parcels[0].ID)
	require.NotNil(t, parcels[0].Zoning)
	assert.Equal(t, 3.0, *parcels[0].Zoning.MaxFAR)
	_, ok := parcels[0].Geometry.(orb.Polygon)
	assert.True(t, ok)

	assert.Nil(t, parcels[1].Zoning, "missing zone leaves zoning unset")

	_, err = s.SelectedParcels(ctx, "p1", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImportProject(t *testing.T) {
	ctx := context.Background()
	project, err := spec.LoadProject("../../examples/default-site")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(ctx, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.ImportProject(ctx, project))
	ids, err := s.ParcelIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"elm-101", "elm-103"}, ids)

	rec, err := s.Zoning(ctx, "RM-1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, *rec.MaxFAR)

	parcels, err := s.SelectedParcels(ctx, ids...)
	require.NoError(t, err)
	for _, p := range parcels {
		assert.NotNil(t, p.Zoning, "parcel %s", p.ID)
	}
}
