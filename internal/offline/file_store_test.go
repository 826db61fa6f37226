package offline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/shared/testutil"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/signature"
)

func newFileStore(t *testing.T) (*FileStore, *testutil.CaptureHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	s, err := NewFileStore(filepath.Join(t.TempDir(), "cache"), WithFileLogger(logger))
	require.NoError(t, err)
	return s, logs
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, logs := newFileStore(t)

	_, ok := s.Read(ctx, "19102026")
	assert.False(t, ok, "never written key must be absent")

	rec := sampleRecord()
	require.NoError(t, s.Write(ctx, "19102026", rec))

	got, ok := s.Read(ctx, "19102026")
	require.True(t, ok)
	assert.Equal(t, rec.Body, got.Body)
	assert.Equal(t, rec.Proof, got.Proof)
	assert.True(t, rec.StoredAt.Equal(got.StoredAt))

	_, err := os.Stat(filepath.Join(s.Dir(), "19102026.json"))
	assert.NoError(t, err)
	testutil.AssertNoErrors(t, logs)
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	first := sampleRecord()
	second := sampleRecord()
	second.Scheme = signature.SchemeRSASHA256
	second.Proof = signature.Proof{Signature: "b3RoZXI="}
	second.Body = []byte(`{"meta":{"valid":false,"code":"EXPIRED"}}`)

	require.NoError(t, s.Write(ctx, "19102026", first))
	require.NoError(t, s.Write(ctx, "19102026", second))

	got, ok := s.Read(ctx, "19102026")
	require.True(t, ok)
	assert.Equal(t, second.Body, got.Body)
	assert.Equal(t, second.Proof, got.Proof)
}

func TestFileStore_ReadFaultsAreAbsent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content []byte
	}{
		{"empty file", nil},
		{"truncated json", []byte(`{"version":1,"proof":{"signature":"c2ln"},"bo`)},
		{"body without proof", []byte(`{"version":1,"body":"e30="}`)},
		{"proof without body", []byte(`{"version":1,"proof":{"signature":"c2ln"}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, logs := newFileStore(t)
			require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "19102026.json"), tt.content, 0o600))

			_, ok := s.Read(ctx, "19102026")
			assert.False(t, ok)
			testutil.AssertLogged(t, logs, slog.LevelWarn, "cache record corrupt")
		})
	}

	t.Run("directory in place of record", func(t *testing.T) {
		s, logs := newFileStore(t)
		require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "19102026.json"), 0o700))

		_, ok := s.Read(ctx, "19102026")
		assert.False(t, ok)
		testutil.AssertLogged(t, logs, slog.LevelWarn, "cache record unreadable")
	})

	t.Run("unsafe key", func(t *testing.T) {
		s, _ := newFileStore(t)
		_, ok := s.Read(ctx, "../19102026")
		assert.False(t, ok)
	})
}

func TestFileStore_WriteRejects(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	assert.Error(t, s.Write(ctx, "../escape", sampleRecord()))

	rec := sampleRecord()
	rec.Body = nil
	assert.Error(t, s.Write(ctx, "19102026", rec))

	_, ok := s.Read(ctx, "19102026")
	assert.False(t, ok, "a rejected write must not leave a record behind")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Write(cancelled, "19102026", sampleRecord()), context.Canceled)
}

func TestFileStore_ConcurrentWritersNeverMix(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord()
			rec.Proof = signature.Proof{Signature: fmt.Sprintf("sig-%d", i)}
			rec.Body = []byte(fmt.Sprintf(`{"writer":%d}`, i))
			assert.NoError(t, s.Write(ctx, "19102026", rec))
		}(i)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if rec, ok := s.Read(ctx, "19102026"); ok {
				var n int
				_, err := fmt.Sscanf(string(rec.Body), `{"writer":%d}`, &n)
				if assert.NoError(t, err) {
					assert.Equal(t, fmt.Sprintf("sig-%d", n), rec.Proof.Signature)
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	_, ok := s.Read(ctx, "19102026")
	assert.True(t, ok)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_PruneBefore(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	for _, key := range []string{"17102026", "18102026", "19102026", "20102026", "pinned"} {
		require.NoError(t, s.Write(ctx, key, sampleRecord()))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "19102026.123.tmp"), []byte("x"), 0o600))

	removed, err := s.PruneBefore(ctx, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for key, want := range map[string]bool{
		"17102026": false,
		"18102026": false,
		"19102026": true,
		"20102026": true,
		"pinned":   true,
	} {
		_, ok := s.Read(ctx, key)
		assert.Equal(t, want, ok, key)
	}

	_, err = os.Stat(filepath.Join(s.Dir(), "19102026.123.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}
