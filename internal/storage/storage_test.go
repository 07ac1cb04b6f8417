package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tracklet-io/tracklet/internal/model"
	"github.com/tracklet-io/tracklet/internal/storage"
	"github.com/tracklet-io/tracklet/migrations"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tracklet",
			"POSTGRES_PASSWORD": "tracklet",
			"POSTGRES_DB":       "tracklet",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}
	dsn := fmt.Sprintf("postgres://tracklet:tracklet@%s:%s/tracklet?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	testDB, err = storage.New(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	if err := testDB.RunMigrations(ctx, migrations.FS); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createTestRun(t *testing.T) int64 {
	t.Helper()
	idScript := int64(1)
	idRun, err := testDB.CreateRun(context.Background(), model.CreateRunRequest{
		IDScript:    &idScript,
		ServiceName: "storage_test",
	})
	require.NoError(t, err)
	return idRun
}

func TestCreateAndGetRun(t *testing.T) {
	ctx := context.Background()
	idRun := createTestRun(t)

	run, err := testDB.GetRun(ctx, idRun)
	require.NoError(t, err)
	assert.Equal(t, idRun, run.IDRun)
	assert.Equal(t, int64(1), run.IDScript)
	require.NotNil(t, run.Status)
	assert.Equal(t, 0, *run.Status)
	assert.True(t, run.IsFather())
	assert.False(t, run.Timestamp.IsZero())
}

func TestGetRunNotFound(t *testing.T) {
	_, err := testDB.GetRun(context.Background(), 999999)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateRunStatus(t *testing.T) {
	ctx := context.Background()
	idRun := createTestRun(t)

	status := 3
	idUser := int64(7)
	run, err := testDB.UpdateRunStatus(ctx, model.UpdateRunStatusRequest{
		IDRun:  idRun,
		Status: &status,
		IDUser: &idUser,
	})
	require.NoError(t, err)
	require.NotNil(t, run.Status)
	assert.Equal(t, 3, *run.Status)
	require.NotNil(t, run.IDUser)
	assert.Equal(t, int64(7), *run.IDUser)

	// Nil fields leave the row unchanged.
	run, err = testDB.UpdateRunStatus(ctx, model.UpdateRunStatusRequest{IDRun: idRun})
	require.NoError(t, err)
	require.NotNil(t, run.Status)
	assert.Equal(t, 3, *run.Status)
}

func TestUpdateRunStatusNotFound(t *testing.T) {
	status := 1
	_, err := testDB.UpdateRunStatus(context.Background(), model.UpdateRunStatusRequest{
		IDRun:  999999,
		Status: &status,
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunHierarchy(t *testing.T) {
	ctx := context.Background()
	father := createTestRun(t)

	idScript := int64(1)
	fatherService := int64(2)
	child1, err := testDB.CreateRun(ctx, model.CreateRunRequest{
		IDScript:        &idScript,
		IDRunFather:     &father,
		FatherServiceID: &fatherService,
		ServiceName:     "storage_test",
	})
	require.NoError(t, err)
	child2, err := testDB.CreateRun(ctx, model.CreateRunRequest{
		IDScript:        &idScript,
		IDRunFather:     &father,
		FatherServiceID: &fatherService,
		ServiceName:     "storage_test",
	})
	require.NoError(t, err)

	children, err := testDB.GetRunChildren(ctx, father)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{child1, child2}, children)

	childRun, err := testDB.GetRun(ctx, child1)
	require.NoError(t, err)
	assert.False(t, childRun.IsFather())
}

func TestInsertAndGetLogs(t *testing.T) {
	ctx := context.Background()
	idRun := createTestRun(t)

	for i, msg := range []string{"first", "second", "third"} {
		err := testDB.InsertLog(ctx, model.LogEntry{
			IDRun:        idRun,
			Log:          msg,
			Error:        i == 2,
			ServiceName:  "storage_test",
			LogTimestamp: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	entries, err := testDB.GetLogsByRun(ctx, idRun)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Log)
	assert.Equal(t, "third", entries[2].Log)
	assert.True(t, entries[2].Error)
	assert.False(t, entries[0].Error)
}

func TestInsertAndGetOutcomes(t *testing.T) {
	ctx := context.Background()
	idRun := createTestRun(t)

	milestone := "metadata generation done"
	require.NoError(t, testDB.InsertOutcome(ctx, model.Outcome{
		IDRun:      idRun,
		IDCategory: model.CategoryRuntime,
		IDType:     model.TypeMetadata,
		VString:    &milestone,
	}))

	elapsed := int64(12)
	require.NoError(t, testDB.InsertOutcome(ctx, model.Outcome{
		IDRun:      idRun,
		IDCategory: model.CategoryExecution,
		IDType:     model.TypeExecutionTime,
		VInteger:   &elapsed,
	}))

	args := json.RawMessage(`{"arg1": 10, "arg2": 20, "operation": "sum"}`)
	require.NoError(t, testDB.InsertOutcome(ctx, model.Outcome{
		IDRun:      idRun,
		IDCategory: model.CategoryExecution,
		IDType:     model.TypeInputArgs,
		VJSONB:     args,
	}))

	outcomes, err := testDB.GetOutcomes(ctx, idRun, model.CategoryRuntime, model.TypeMetadata)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].VString)
	assert.Equal(t, milestone, *outcomes[0].VString)
	assert.Equal(t, 1, outcomes[0].ValueCount())

	outcomes, err = testDB.GetOutcomes(ctx, idRun, model.CategoryExecution, model.TypeInputArgs)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(outcomes[0].VJSONB, &decoded))
	assert.Equal(t, "sum", decoded["operation"])
}

func TestInsertOutcomeRejectsMultipleValues(t *testing.T) {
	ctx := context.Background()
	idRun := createTestRun(t)

	// The single-value constraint is enforced at the database too.
	v := int64(1)
	s := "x"
	err := testDB.InsertOutcome(ctx, model.Outcome{
		IDRun:      idRun,
		IDCategory: model.CategoryRuntime,
		IDType:     model.TypeResult,
		VInteger:   &v,
		VString:    &s,
	})
	require.Error(t, err)
}

func TestGetDataRunTypesSeeded(t *testing.T) {
	ctx := context.Background()

	all, err := testDB.GetDataRunTypes(ctx, storage.DataRunTypeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)

	cat := model.CategoryRuntime
	typ := model.TypeMetadata
	filtered, err := testDB.GetDataRunTypes(ctx, storage.DataRunTypeFilter{
		IDCategory: &cat,
		IDType:     &typ,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "runtime", filtered[0].CategoryName)
	assert.Equal(t, "metadata", filtered[0].TypeName)

	name := "execution"
	byName, err := testDB.GetDataRunTypes(ctx, storage.DataRunTypeFilter{CategoryName: &name})
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}
