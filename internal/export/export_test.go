package export

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/ticksy/internal/apiclient"
	"github.com/kirinyoku/ticksy/internal/slice/attendees"
)

type downloadAPI struct {
	data []byte
}

func (d downloadAPI) Get(context.Context, string, any) error       { return nil }
func (d downloadAPI) Post(context.Context, string, any, any) error { return nil }
func (d downloadAPI) Download(context.Context, string) (*apiclient.Blob, error) {
	return &apiclient.Blob{Data: d.data, ContentType: "text/csv"}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandler_WritesAndClears(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	slice := attendees.New(downloadAPI{data: []byte("id,name\n1,Ann\n")}, discard())

	var results []Result
	h := New(dir, discard(), WithNotify(func(r Result) { results = append(results, r) }))
	detach := h.Attach(slice)
	defer detach()

	_, err := slice.Export(context.Background(), "e1", "csv")
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, filepath.Join(dir, "attendees.csv"), results[0].Path)

	b, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Ann\n", string(b))

	assert.Nil(t, slice.Container().Snapshot().Export)
}

func TestHandler_EachExportWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	slice := attendees.New(downloadAPI{data: []byte("x")}, discard())

	var results []Result
	h := New(dir, discard(), WithNotify(func(r Result) { results = append(results, r) }))
	defer h.Attach(slice)()

	_, err := slice.Export(context.Background(), "e1", "csv")
	require.NoError(t, err)
	_, err = slice.Export(context.Background(), "e1", "xlsx")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Less(t, results[0].Seq, results[1].Seq)
	assert.FileExists(t, filepath.Join(dir, "attendees.csv"))
	assert.FileExists(t, filepath.Join(dir, "attendees.xlsx"))
}

func TestHandler_DetachStopsWriting(t *testing.T) {
	dir := t.TempDir()
	slice := attendees.New(downloadAPI{data: []byte("x")}, discard())

	New(dir, discard()).Attach(slice)()

	_, err := slice.Export(context.Background(), "e1", "csv")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "attendees.csv"))
	assert.NotNil(t, slice.Container().Snapshot().Export)
}
