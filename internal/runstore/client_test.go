package runstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/runstore"
)

func TestCreateRunStampsServiceName(t *testing.T) {
	var got model.CreateRunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/create_new_run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.CreateRunResponse{IDRun: 321})
	}))
	defer srv.Close()

	c := runstore.New(srv.URL, "sum_service", time.Second)
	idScript := int64(1)
	idRun, err := c.CreateRun(context.Background(), model.CreateRunRequest{IDScript: &idScript})
	require.NoError(t, err)
	assert.Equal(t, int64(321), idRun)
	assert.Equal(t, "sum_service", got.ServiceName)
}

func TestCreateRunServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(model.ErrorResponse{
			Service: "db_manager", RouteName: "create_new_run",
			Error: "id_script is required", StatusCode: http.StatusBadRequest,
		})
	}))
	defer srv.Close()

	c := runstore.New(srv.URL, "sum_service", time.Second)
	idScript := int64(1)
	_, err := c.CreateRun(context.Background(), model.CreateRunRequest{IDScript: &idScript})
	require.Error(t, err)
	assert.Equal(t, apperr.KindAPI, apperr.KindOf(err))
	assert.Contains(t, apperr.DetailsOf(err), "id_script is required")
}

func TestCreateRunUnreachable(t *testing.T) {
	c := runstore.New("http://127.0.0.1:1", "sum_service", 500*time.Millisecond)
	idScript := int64(1)
	_, err := c.CreateRun(context.Background(), model.CreateRunRequest{IDScript: &idScript})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConnection, apperr.KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.StatusCode(err))
}

func TestSaveOutcomeValidatesLocally(t *testing.T) {
	c := runstore.New("http://127.0.0.1:1", "sum_service", time.Second)

	// Two value columns set: rejected before any network call.
	v := int64(1)
	s := "x"
	err := c.SaveOutcome(context.Background(), model.Outcome{
		IDRun: 1, VInteger: &v, VString: &s,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSaveOutcomeSendsServiceName(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/insert_outcome_run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := runstore.New(srv.URL, "sum_service", time.Second)
	result := 30.0
	err := c.SaveOutcome(context.Background(), model.Outcome{
		IDRun: 5, IDCategory: model.CategoryRuntime, IDType: model.TypeResult, VFloatpoint: &result,
	})
	require.NoError(t, err)
	assert.Equal(t, "sum_service", got["service_name"])
	assert.Equal(t, float64(5), got["id_run"])
	assert.Equal(t, 30.0, got["v_floatpoint"])
	assert.NotEmpty(t, got["timestamp"])
}

func TestGetRun(t *testing.T) {
	status := 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_run", r.URL.Path)
		_ = json.NewEncoder(w).Encode(model.Run{IDRun: 9, IDScript: 1, Status: &status})
	}))
	defer srv.Close()

	c := runstore.New(srv.URL, "sum_service", time.Second)
	run, err := c.GetRun(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), run.IDRun)
	require.NotNil(t, run.Status)
	assert.Equal(t, 1, *run.Status)
}

func TestGetDataRunTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_data_run_types", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("id_category"))
		assert.Equal(t, "0", r.URL.Query().Get("id_type"))
		_ = json.NewEncoder(w).Encode([]model.DataRunType{
			{IDCategory: 1, IDType: 0, CategoryName: "runtime", TypeName: "metadata"},
		})
	}))
	defer srv.Close()

	c := runstore.New(srv.URL, "sum_service", time.Second)
	types, err := c.GetDataRunTypes(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "metadata", types[0].TypeName)
}
