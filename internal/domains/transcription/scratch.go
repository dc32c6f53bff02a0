package transcription

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

const DefaultNamespace = "aegyptus-whisper"

// ScratchArea is the directory uploads are staged in while a worker reads them.
type ScratchArea struct {
	dir    string
	logger *Logger.Logger
}

// NewScratchArea places the area at <root>/<namespace>; an empty root means os.TempDir().
func NewScratchArea(root, namespace string, logger *Logger.Logger) *ScratchArea {
	if root == "" {
		root = os.TempDir()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &ScratchArea{dir: filepath.Join(root, namespace), logger: logger}
}

func (a *ScratchArea) Dir() string { return a.dir }

// Ensure creates the directory if needed. Concurrent callers are fine.
func (a *ScratchArea) Ensure() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir %s: %w", a.dir, err)
	}
	return nil
}

// StagedFile is an upload written to the scratch area as <ID>.<Ext>.
type StagedFile struct {
	ID   string
	Path string
	Ext  string
	Size int64

	logger *Logger.Logger
}

// Dir is the scratch directory holding the file.
func (f *StagedFile) Dir() string { return filepath.Dir(f.Path) }

// Remove deletes the file along with any worker by-products named
// <prefix>_<ID>.<ext> next to it. Failures are logged, never returned.
func (f *StagedFile) Remove() {
	if f == nil || f.Path == "" {
		return
	}
	f.remove(f.Path)
	if f.ID == "" {
		return
	}
	extra, _ := filepath.Glob(filepath.Join(f.Dir(), "*_"+f.ID+".*"))
	for _, path := range extra {
		f.remove(path)
	}
}

func (f *StagedFile) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warnf("failed to remove staged audio %s: %v", path, err)
		return
	}
	f.logger.Debugf("removed staged audio %s", path)
}

// Stage validates the upload and writes it to a fresh <uuid>.<ext> file.
// On any failure nothing is left behind.
func (a *ScratchArea) Stage(u UploadedAudio, maxBytes int64) (*StagedFile, error) {
	if err := ValidateUpload(u, maxBytes); err != nil {
		return nil, err
	}
	if err := a.Ensure(); err != nil {
		return nil, err
	}

	ext := NormalizeExtension(u.Filename, u.ContentType)
	id := uuid.NewString()
	path := filepath.Join(a.dir, id+"."+ext)
	staged := &StagedFile{ID: id, Path: path, Ext: ext, logger: a.logger}

	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged audio: %w", err)
	}
	if _, err := fh.Write(u.Data); err != nil {
		fh.Close()
		staged.Remove()
		return nil, fmt.Errorf("failed to write staged audio: %w", err)
	}
	if err := fh.Close(); err != nil {
		staged.Remove()
		return nil, fmt.Errorf("failed to close staged audio: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		staged.Remove()
		return nil, fmt.Errorf("failed to stat staged audio: %w", err)
	}
	if info.Size() == 0 || info.Size() != int64(len(u.Data)) {
		staged.Remove()
		return nil, fmt.Errorf("staged audio size mismatch: wrote %d bytes, found %d", len(u.Data), info.Size())
	}
	staged.Size = info.Size()

	a.logger.Debugf("staged audio %s (%d bytes)", path, staged.Size)
	return staged, nil
}

// Sweep removes staged files and worker by-products older than olderThan,
// left by a crashed process.
// It returns how many files were removed.
func (a *ScratchArea) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read scratch dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isStagedName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, entry.Name())); err != nil {
			a.logger.Warnf("sweep: failed to remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		a.logger.Infof("sweep: removed %d stale staged files from %s", removed, a.dir)
	}
	return removed, nil
}

// isStagedName matches <uuid>.<ext> and <prefix>_<uuid>.<ext>.
func isStagedName(name string) bool {
	base, ext, ok := strings.Cut(name, ".")
	if !ok || !supportedExtensions[ext] {
		return false
	}
	if i := strings.LastIndexByte(base, '_'); i >= 0 {
		base = base[i+1:]
	}
	_, err := uuid.Parse(base)
	return err == nil
}
