package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChicagoDave/siteplanner/pkg/siteplan"
	"github.com/ChicagoDave/siteplanner/pkg/spec"
	"github.com/ChicagoDave/siteplanner/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadProject(t *testing.T) *spec.Project {
	t.Helper()
	p, err := spec.LoadProject("../../examples/default-site")
	require.NoError(t, err)
	return p
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Env.Costs.Name() == "" {
		opts.Env = siteplan.DefaultEnvironment()
	}
	ts := httptest.NewServer(New(opts).Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type decoded struct {
	ID         string           `json:"id"`
	Error      string           `json:"error"`
	Site       *json.RawMessage `json:"site"`
	Assemblage *struct {
		AreaSqFt   float64 `json:"area_sqft"`
		Contiguous bool    `json:"contiguous"`
	} `json:"assemblage"`
	Plan *struct {
		ParcelIDs      []string `json:"parcel_ids"`
		IsFeasible     bool     `json:"is_feasible"`
		Classification string   `json:"classification"`
	} `json:"plan"`
	Scenarios []struct {
		ScenarioName   string `json:"scenario_name"`
		Classification string `json:"classification"`
	} `json:"scenarios"`
}

func decodeBody(t *testing.T, resp *http.Response) decoded {
	t.Helper()
	var d decoded
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	return d
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProjectEndpoint(t *testing.T) {
	resp := get(t, newTestServer(t, Options{}), "/api/project")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = get(t, newTestServer(t, Options{Project: loadProject(t)}), "/api/project")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p spec.Project
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Elm Street Assemblage", p.Name)
}

func TestCostsEndpoint(t *testing.T) {
	resp := get(t, newTestServer(t, Options{}), "/api/costs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Name  string `json:"name"`
		Items []struct {
			Code string `json:"code"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "default", body.Name)
	assert.NotEmpty(t, body.Items)
}

func TestPlanFromProject(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t)})
	resp := post(t, ts, "/api/plan", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	d := decodeBody(t, resp)
	_, err := uuid.Parse(d.ID)
	assert.NoError(t, err, "envelope id should be a uuid")
	require.NotNil(t, d.Plan)
	assert.Equal(t, []string{"elm-101", "elm-103"}, d.Plan.ParcelIDs)
	assert.NotEmpty(t, d.Plan.Classification)
	assert.NotNil(t, d.Site)
}

func TestPlanIDsAreUnique(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t)})
	a := decodeBody(t, post(t, ts, "/api/plan", ""))
	b := decodeBody(t, post(t, ts, "/api/plan", ""))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPlanSubsetOfProjectParcels(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t)})
	resp := post(t, ts, "/api/plan", `{"parcel_ids":["elm-103"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody(t, resp)
	require.NotNil(t, d.Plan)
	assert.Equal(t, []string{"elm-103"}, d.Plan.ParcelIDs)

	resp = post(t, ts, "/api/plan", `{"parcel_ids":["nope"]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlanInlineParcels(t *testing.T) {
	ts := newTestServer(t, Options{})
	body := `{
		"crs": "projected-feet",
		"parcels": [{"id": "lot-1", "zone_code": "EX",
			"geometry": {"type":"Polygon","coordinates":[[[0,0],[220,0],[220,198],[0,198],[0,0]]]}}],
		"zoning": {"EX": {"max_far": 2, "max_height_ft": 60, "max_coverage_pct": 60}},
		"configuration": {"target_units": 20, "building_type": "residential", "parking_type": "surface",
			"open_space_ratio": 0.2,
			"unit_mix": {"studio": 0.2, "oneBedroom": 0.4, "twoBedroom": 0.3, "threeBedroom": 0.1}}
	}`
	resp := post(t, ts, "/api/plan", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody(t, resp)
	require.NotNil(t, d.Plan)
	assert.True(t, d.Plan.IsFeasible)
}

func TestPlanWithoutZoningIsUnavailable(t *testing.T) {
	ts := newTestServer(t, Options{})
	body := `{
		"crs": "projected-feet",
		"parcels": [{"id": "lot-1", "zone_code": "EX",
			"geometry": {"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}],
		"configuration": {"target_units": 1}
	}`
	resp := post(t, ts, "/api/plan", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp).Error, siteplan.ErrEngineUnavailable.Error())
}

func TestPlanBadRequests(t *testing.T) {
	ts := newTestServer(t, Options{})
	assert.Equal(t, http.StatusBadRequest, post(t, ts, "/api/plan", `{not json`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts, "/api/plan", "").StatusCode, "no parcels and no project")
	assert.Equal(t, http.StatusBadRequest, post(t, ts, "/api/plan", `{"crs":"EPSG:2227"}`).StatusCode)
}

func TestPlanGeoJSON(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t)})
	resp := post(t, ts, "/api/plan/geojson", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 1, "adjoining parcels form one footprint")
}

func TestAssemble(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t)})
	resp := post(t, ts, "/api/assemble", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody(t, resp)
	require.NotNil(t, d.Assemblage)
	assert.True(t, d.Assemblage.Contiguous)
	assert.InDelta(t, 87120, d.Assemblage.AreaSqFt, 0.01)
}

func TestOptimize(t *testing.T) {
	ts := newTestServer(t, Options{Project: loadProject(t), Workers: 2})
	resp := post(t, ts, "/api/optimize", `{"top_n": 2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody(t, resp)
	assert.NotEmpty(t, d.Scenarios)
	assert.LessOrEqual(t, len(d.Scenarios), 2)
	for _, s := range d.Scenarios {
		assert.NotEqual(t, "infeasible", s.Classification, s.ScenarioName)
	}
}

func TestPlanFromCatalog(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:", quietLogger())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.ImportProject(ctx, loadProject(t)))

	ts := newTestServer(t, Options{Store: st})
	body := `{"crs": "projected-feet", "parcel_ids": ["elm-101", "elm-103"],
		"configuration": {"target_units": 40, "building_type": "residential", "parking_type": "garage",
			"open_space_ratio": 0.2, "unit_mix": {"oneBedroom": 0.5, "twoBedroom": 0.5}}}`
	resp := post(t, ts, "/api/plan", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody(t, resp)
	require.NotNil(t, d.Plan)
	assert.Len(t, d.Plan.ParcelIDs, 2)

	resp = post(t, ts, "/api/plan", `{"crs": "projected-feet", "parcel_ids": ["missing"], "configuration": {"target_units": 1}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
