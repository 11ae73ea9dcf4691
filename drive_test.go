package salesbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, retryDelay(0))
	assert.Equal(t, 1500*time.Millisecond, retryDelay(1))
	assert.Equal(t, 2250*time.Millisecond, retryDelay(2))
	assert.Equal(t, retryDelayCap, retryDelay(10), "delay should cap at 5s")
}

func TestExecWithRetries(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after two failures", func(t *testing.T) {
		t.Parallel()
		var slept []time.Duration
		calls := 0
		err := execWithRetries(context.Background(), func(d time.Duration) { slept = append(slept, d) }, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond}, slept)
	})

	t.Run("returns last error after exhaustion", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := execWithRetries(context.Background(), func(time.Duration) {}, func() error {
			calls++
			return fmt.Errorf("attempt %d", calls)
		})
		require.Error(t, err)
		assert.Equal(t, maxRetries, calls)
		assert.EqualError(t, err, "attempt 3")
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := execWithRetries(ctx, func(time.Duration) {}, func() error {
			calls++
			return errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls, "only the pre-cancel attempt should run")
	})
}

func TestRangeExhausted(t *testing.T) {
	t.Parallel()

	assert.True(t, rangeExhausted("bytes 0-99/100", 100))
	assert.False(t, rangeExhausted("bytes 0-99/200", 100))
	assert.False(t, rangeExhausted("garbage", 100))
}

// testDriveClient points a client without auth at a test server.
func testDriveClient(serverURL string) *DriveClient {
	return &DriveClient{
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		filesURL:   serverURL + "/files",
		sheetsURL:  serverURL + "/sheets",
		sleep:      func(time.Duration) {},
	}
}

func TestDriveClientListFolder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"nextPageToken":"p2","files":[{"id":"1","name":"a.csv","mimeType":"text/csv"}]}`)
		case "p2":
			fmt.Fprint(w, `{"files":[{"id":"2","name":"b.xlsx","mimeType":"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}]}`)
		default:
			http.Error(w, "unexpected token", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	files, err := testDriveClient(srv.URL).ListFolder(context.Background(), "folder1")
	require.NoError(t, err)
	require.Len(t, files, 2, "both pages should be collected")
	assert.Equal(t, "a.csv", files[0].Name)
	assert.Equal(t, "2", files[1].ID)
}

func TestDriveClientDownloadBytes(t *testing.T) {
	t.Parallel()

	content := []byte("data;quantidade\n01/01/2024;10\n")

	t.Run("full response", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(content)
		}))
		defer srv.Close()

		got, err := testDriveClient(srv.URL).DownloadBytes(context.Background(), "f1")
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("partial content with content range", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(content)
		}))
		defer srv.Close()

		got, err := testDriveClient(srv.URL).DownloadBytes(context.Background(), "f1")
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("server error retries then fails", func(t *testing.T) {
		t.Parallel()
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := testDriveClient(srv.URL).DownloadBytes(context.Background(), "f1")
		require.Error(t, err)
		assert.Equal(t, maxRetries, calls, "each chunk retries up to the budget")
	})
}

func TestDriveClientSheetValues(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":[["Data","Quantidade"],["01/01/2024",10.0],["02/01/2024",true]]}`)
	}))
	defer srv.Close()

	rows, err := testDriveClient(srv.URL).SheetValues(context.Background(), "s1", "Vendas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Data", "Quantidade"}, rows[0])
	assert.Equal(t, "10", rows[1][1], "numeric cells render without trailing .0")
	assert.Equal(t, "true", rows[2][1])
}
