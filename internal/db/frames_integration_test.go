//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDimension = 8

var testDB *Client

func TestMain(m *testing.M) {
	// Ryuk fails on some CI runners
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start surrealdb container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := testDB.InitSchema(ctx, testDimension); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// unitVector points along axis i.
func unitVector(i int) []float32 {
	v := make([]float32, testDimension)
	v[i%testDimension] = 1
	return v
}

func frameMeta(fileKey, frameID, name string) map[string]any {
	return map[string]any{
		"frame_id":        frameID,
		"frame_name":      name,
		"job_id":          "job-" + fileKey,
		"file_key":        fileKey,
		"component_count": 2,
	}
}

func TestUpsertAndGetFrameSpec(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeData(ctx) })

	err := testDB.UpsertFrameSpec(ctx, "FILEA/1:1", "Frame: Login\nComponent: Submit (button)", unitVector(0), frameMeta("FILEA", "1:1", "Login"))
	require.NoError(t, err)

	got, err := testDB.GetFrameSpec(ctx, "FILEA/1:1")
	require.NoError(t, err)
	assert.Equal(t, "FILEA/1:1", got.ID)
	assert.Equal(t, "1:1", got.FrameID)
	assert.Equal(t, "Login", got.FrameName)
	assert.Equal(t, "job-FILEA", got.JobID)
	assert.Contains(t, got.Content, "Submit")
	assert.False(t, got.IndexedAt.IsZero())

	// re-index overwrites
	err = testDB.UpsertFrameSpec(ctx, "FILEA/1:1", "Frame: Login v2", unitVector(0), frameMeta("FILEA", "1:1", "Login v2"))
	require.NoError(t, err)
	got, err = testDB.GetFrameSpec(ctx, "FILEA/1:1")
	require.NoError(t, err)
	assert.Equal(t, "Login v2", got.FrameName)

	_, err = testDB.GetFrameSpec(ctx, "FILEA/404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchFrameSpecsOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeData(ctx) })

	for i := range 3 {
		id := fmt.Sprintf("1:%d", i)
		require.NoError(t, testDB.UpsertFrameSpec(ctx, "FILEB/"+id, "Frame "+id, unitVector(i), frameMeta("FILEB", id, "Frame "+id)))
	}

	results, err := testDB.SearchFrameSpecs(ctx, unitVector(1), 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	assert.Equal(t, "1:1", results[0].FrameID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestDeleteFileFrames(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeData(ctx) })

	require.NoError(t, testDB.UpsertFrameSpec(ctx, "FILEC/1:1", "a", unitVector(2), frameMeta("FILEC", "1:1", "a")))
	require.NoError(t, testDB.UpsertFrameSpec(ctx, "FILEC/1:2", "b", unitVector(3), frameMeta("FILEC", "1:2", "b")))
	require.NoError(t, testDB.UpsertFrameSpec(ctx, "FILED/1:1", "c", unitVector(4), frameMeta("FILED", "1:1", "c")))

	n, err := testDB.DeleteFileFrames(ctx, "FILEC")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = testDB.GetFrameSpec(ctx, "FILED/1:1")
	assert.NoError(t, err)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeData(ctx) })

	err := testDB.UpsertFrameSpec(ctx, "FILEE/1:1", "text", []float32{1, 2, 3}, frameMeta("FILEE", "1:1", "x"))
	assert.Error(t, err)
}

func TestInitSchemaRejectsInvalidDimension(t *testing.T) {
	assert.Error(t, testDB.InitSchema(context.Background(), 0))
}
