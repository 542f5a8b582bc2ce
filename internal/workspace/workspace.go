package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mov-converter/internal/logging"
	"mov-converter/internal/mediatypes"
	"mov-converter/internal/metrics"

	"github.com/google/uuid"
)

// JobDirPrefix marks directories created by Create. Sweep only touches
// directories carrying it.
const JobDirPrefix = "job-"

// writableCheckInterval is how long a CheckWritable result is reused.
const writableCheckInterval = 30 * time.Second

// Manager creates job directories under a base directory.
type Manager struct {
	baseDir string

	checkMu       sync.Mutex
	checkedAt     time.Time
	checkErr      error
	checkInterval time.Duration
	now           func() time.Time
}

// Job holds the temp paths of one conversion.
type Job struct {
	ID         string
	Dir        string
	InputPath  string
	OutputPath string
}

// NewManager creates a Manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:       baseDir,
		checkInterval: writableCheckInterval,
		now:           time.Now,
	}
}

// BaseDir returns the directory job directories are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Create makes a new, empty job directory.
func (m *Manager) Create() (*Job, error) {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.baseDir, JobDirPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	return &Job{
		ID:         id,
		Dir:        dir,
		InputPath:  filepath.Join(dir, mediatypes.TempInputName),
		OutputPath: filepath.Join(dir, mediatypes.TempOutputName),
	}, nil
}

// WriteInput copies r verbatim into the job's input file, replacing any
// previous content, and returns the number of bytes written.
func (j *Job) WriteInput(r io.Reader) (int64, error) {
	f, err := os.OpenFile(j.InputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp input: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, fmt.Errorf("failed to write temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp input: %w", err)
	}

	return n, nil
}

// ReadOutput returns the content of the job's output file.
func (j *Job) ReadOutput() ([]byte, error) {
	data, err := os.ReadFile(j.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted output: %w", err)
	}
	return data, nil
}

// Cleanup removes the input and output files if they exist, then the job
// directory. Missing files are not errors. Every removal is attempted; the
// returned error joins the failures.
func (j *Job) Cleanup() error {
	var errs []error

	for _, path := range []string{j.InputPath, j.OutputPath} {
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
		}
	}

	if err := os.Remove(j.Dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove job directory: %w", err))
	}

	if len(errs) > 0 {
		metrics.WorkspaceCleanupErrors.Add(float64(len(errs)))
		return errors.Join(errs...)
	}

	logging.Debug("Cleaned up job %s", j.ID)
	return nil
}

func removeIfExists(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Sweep removes job directories left in the work directory, typically by a
// process that exited mid-conversion. Only directories named by Create, last
// modified at least minAge ago and holding nothing but the temp input and
// output are removed. Returns the number of directories removed.
func (m *Manager) Sweep(minAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read work directory: %w", err)
	}

	cutoff := m.now().Add(-minAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !isJobDirName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := removeJobDir(path); err != nil {
			logging.Warn("Leaving job directory %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.WorkspaceSweptJobs.Add(float64(removed))
		logging.Info("Removed %d stale job directories from %s", removed, m.baseDir)
	}
	return removed, nil
}

func isJobDirName(name string) bool {
	id, ok := strings.CutPrefix(name, JobDirPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// removeJobDir removes a job directory only if every entry in it is one of
// the temp files Create hands out.
func removeJobDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || (name != mediatypes.TempInputName && name != mediatypes.TempOutputName) {
			return fmt.Errorf("unexpected entry %q", name)
		}
	}
	for _, entry := range entries {
		if err := removeIfExists(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return os.Remove(dir)
}

// CheckWritable verifies that job directories can be created. The result is
// reused for a short interval so frequent health checks do not touch disk on
// every request.
func (m *Manager) CheckWritable() error {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	now := m.now()
	if !m.checkedAt.IsZero() && now.Sub(m.checkedAt) < m.checkInterval {
		return m.checkErr
	}

	m.checkErr = m.checkWritable()
	m.checkedAt = now
	return m.checkErr
}

func (m *Manager) checkWritable() error {
	job, err := m.Create()
	if err != nil {
		return err
	}
	if _, err := job.WriteInput(strings.NewReader("test")); err != nil {
		_ = job.Cleanup()
		return err
	}
	return job.Cleanup()
}
