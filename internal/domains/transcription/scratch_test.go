package transcription

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScratch(t *testing.T) *ScratchArea {
	t.Helper()
	return NewScratchArea(t.TempDir(), "aegyptus-whisper", nil)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStagePreservesBytes(t *testing.T) {
	area := newTestScratch(t)

	for _, size := range []int{1, 7, 4096, 1 << 20} {
		data := bytes.Repeat([]byte{0xAB}, size)
		staged, err := area.Stage(UploadedAudio{Filename: "clip.wav", Data: data}, 2<<20)
		require.NoError(t, err)

		info, err := os.Stat(staged.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(size), info.Size())
		assert.Equal(t, int64(size), staged.Size)

		got, err := os.ReadFile(staged.Path)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		staged.Remove()
	}
	assert.Empty(t, listDir(t, area.Dir()))
}

func TestStageNamesFileWithUUIDAndAllowedExtension(t *testing.T) {
	area := newTestScratch(t)

	staged, err := area.Stage(UploadedAudio{Filename: "payload.exe", Data: []byte("x")}, 10)
	require.NoError(t, err)
	defer staged.Remove()

	assert.Equal(t, area.Dir(), filepath.Dir(staged.Path))
	assert.Equal(t, "webm", staged.Ext)
	base := strings.TrimSuffix(filepath.Base(staged.Path), ".webm")
	_, err = uuid.Parse(base)
	assert.NoError(t, err)
}

func TestStageRejectsEmptyAndOversized(t *testing.T) {
	area := newTestScratch(t)

	var v *ValidationError
	_, err := area.Stage(UploadedAudio{Filename: "a.wav"}, 10)
	assert.True(t, errors.As(err, &v))

	_, err = area.Stage(UploadedAudio{Filename: "a.wav", Data: make([]byte, 11)}, 10)
	assert.True(t, errors.As(err, &v))

	assert.Empty(t, listDir(t, area.Dir()))
}

func TestEnsureConcurrent(t *testing.T) {
	root := t.TempDir()
	area := NewScratchArea(root, "aegyptus-whisper", nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- area.Ensure()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"aegyptus-whisper"}, listDir(t, root))
}

func TestStageFailsWhenDirIsAFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "aegyptus-whisper"), []byte("x"), 0o644))
	area := NewScratchArea(root, "aegyptus-whisper", nil)

	_, err := area.Stage(UploadedAudio{Filename: "a.wav", Data: []byte("x")}, 10)
	assert.Error(t, err)
}

func TestStagedFileRemoveIsIdempotent(t *testing.T) {
	area := newTestScratch(t)
	staged, err := area.Stage(UploadedAudio{Filename: "a.ogg", Data: []byte("x")}, 10)
	require.NoError(t, err)

	staged.Remove()
	staged.Remove()
	var nilFile *StagedFile
	nilFile.Remove()

	_, err = os.Stat(staged.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStagedFileRemoveTakesWorkerByProducts(t *testing.T) {
	area := newTestScratch(t)
	staged, err := area.Stage(UploadedAudio{Filename: "a.webm", Data: []byte("x")}, 10)
	require.NoError(t, err)
	other, err := area.Stage(UploadedAudio{Filename: "b.webm", Data: []byte("y")}, 10)
	require.NoError(t, err)

	byProduct := filepath.Join(area.Dir(), "processed_"+staged.ID+".wav")
	require.NoError(t, os.WriteFile(byProduct, []byte("pcm"), 0o600))

	staged.Remove()
	assert.Equal(t, []string{filepath.Base(other.Path)}, listDir(t, area.Dir()))
}

func TestSweepRemovesOnlyStaleStagedFiles(t *testing.T) {
	area := newTestScratch(t)
	require.NoError(t, area.Ensure())

	stale := filepath.Join(area.Dir(), uuid.NewString()+".wav")
	staleByProduct := filepath.Join(area.Dir(), "processed_"+uuid.NewString()+".wav")
	fresh := filepath.Join(area.Dir(), uuid.NewString()+".mp3")
	foreign := filepath.Join(area.Dir(), "notes.txt")
	for _, p := range []string{stale, staleByProduct, fresh, foreign} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{stale, staleByProduct, foreign} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	removed, err := area.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{filepath.Base(fresh), "notes.txt"}, listDir(t, area.Dir()))
}

func TestSweepMissingDir(t *testing.T) {
	removed, err := newTestScratch(t).Sweep(time.Minute)
	assert.NoError(t, err)
	assert.Zero(t, removed)
}
