package rotate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

const defaultRetryInterval = time.Minute

// ErrClosed is returned by operations on a closed Writer.
var ErrClosed = errors.New("rotate: writer is closed")

// Rotation describes a completed rollover.
type Rotation struct {
	// Active is the path of the freshly opened live file.
	Active string
	// Rotated is the path the previous live file was renamed to.
	Rotated string
	// Period is a time inside the interval the rotated file covers.
	Period time.Time
	// At is when the rollover happened.
	At time.Time
}

// Hook runs after a rotation completes. Hooks run while the Writer is locked
// and must not write to it.
type Hook func(Rotation) error

// Option configures a Writer.
type Option func(*Writer)

// WithPolicy sets the rollover policy. Midnight is the default.
func WithPolicy(p Policy) Option {
	return func(w *Writer) {
		if p != nil {
			w.policy = p
		}
	}
}

// WithRetention keeps at most n backups next to the live file; 0 keeps all.
func WithRetention(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.keep = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithHook appends a post-rotation hook. Hooks run in registration order.
func WithHook(h Hook) Option {
	return func(w *Writer) {
		if h != nil {
			w.hooks = append(w.hooks, h)
		}
	}
}

// WithErrorHandler receives rotation and hook failures that happen during Write.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Writer) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// WithRetryInterval bounds how often a failed rotation is re-attempted.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.retryEvery = d
		}
	}
}

// Writer is an io.WriteCloser over a file that rolls over on policy boundaries.
// It is safe for concurrent use.
type Writer struct {
	path       string
	policy     Policy
	keep       int
	now        func() time.Time
	hooks      []Hook
	onError    func(error)
	retryEvery time.Duration

	mu         sync.Mutex
	file       *os.File
	period     time.Time
	rolloverAt time.Time
	retry      *rate.Limiter
	failing    bool
	closed     bool
}

// New opens path for appending, creating it and its parent directories.
// An existing file keeps the period of its last modification, so a file left
// over from an earlier day is rotated on the first write.
func New(path string, opts ...Option) (*Writer, error) {
	w := &Writer{
		path:       path,
		policy:     Midnight,
		now:        time.Now,
		onError:    func(error) {},
		retryEvery: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.retry = rate.NewLimiter(rate.Every(w.retryEvery), 1)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}

	period := w.now()
	if info, err := w.file.Stat(); err == nil && info.Size() > 0 {
		period = info.ModTime()
	}
	w.period = period
	w.rolloverAt = w.policy.Next(period)

	return w, nil
}

// Path returns the live file path.
func (w *Writer) Path() string {
	return w.path
}

// Write appends p to the live file, rolling over first when a boundary has passed.
// Rotation failures are reported to the error handler and never fail the write.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	if now := w.now(); !now.Before(w.rolloverAt) {
		w.tryRotate(now)
	}

	if w.file == nil {
		if err := w.openFile(); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

// Rotate forces a rollover now and runs the hooks. Errors are returned
// instead of going to the error handler.
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	rotation, err := w.rotate(w.now())
	if err != nil {
		return err
	}
	return w.runHooks(rotation)
}

// Sync commits the live file to stable storage.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close flushes and closes the live file. Further writes return ErrClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.file == nil {
		return nil
	}
	err := multierr.Combine(w.file.Sync(), w.file.Close())
	w.file = nil
	return err
}

func (w *Writer) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = f
	return nil
}

// tryRotate rotates during a Write. After a failure, re-attempts are limited
// to one per retry interval.
func (w *Writer) tryRotate(now time.Time) {
	if w.failing && !w.retry.AllowN(now, 1) {
		return
	}

	rotation, err := w.rotate(now)
	if err != nil {
		if !w.failing {
			w.failing = true
			w.retry.ReserveN(now, 1)
		}
		w.onError(err)
		return
	}
	w.failing = false

	if err := w.runHooks(rotation); err != nil {
		w.onError(err)
	}
}

// rotate renames the live file to its dated backup and reopens it. When the
// rename fails the original file is reopened and the boundary is kept, so the
// next attempt rotates the same period.
func (w *Writer) rotate(now time.Time) (Rotation, error) {
	rotated := w.path + "." + w.period.Format(w.policy.Layout())

	if w.file != nil {
		closeErr := w.file.Close()
		w.file = nil
		if closeErr != nil {
			return Rotation{}, w.reopen(fmt.Errorf("rotate %s: close: %w", w.path, closeErr))
		}
	}

	if err := os.Remove(rotated); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Rotation{}, w.reopen(fmt.Errorf("rotate %s: replace %s: %w", w.path, rotated, err))
	}
	if err := os.Rename(w.path, rotated); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Rotation{}, w.reopen(fmt.Errorf("rotate %s: %w", w.path, err))
	}

	if err := w.openFile(); err != nil {
		return Rotation{}, fmt.Errorf("rotate %s: %w", w.path, err)
	}

	if err := Prune(filepath.Dir(w.path), filepath.Base(w.path), w.policy.Layout(), w.keep); err != nil {
		w.onError(fmt.Errorf("prune backups of %s: %w", w.path, err))
	}

	rotation := Rotation{
		Active:  w.path,
		Rotated: rotated,
		Period:  w.period,
		At:      now,
	}
	w.period = now
	w.rolloverAt = w.policy.Next(now)

	return rotation, nil
}

func (w *Writer) reopen(cause error) error {
	return multierr.Append(cause, w.openFile())
}

func (w *Writer) runHooks(rotation Rotation) error {
	var errs error
	for _, hook := range w.hooks {
		if err := hook(rotation); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("after rotating %s: %w", rotation.Rotated, err))
		}
	}
	return errs
}

// Backups lists the names of rotated copies of base found in dir, oldest first.
// Only regular files named base + "." + a time in layout qualify.
func Backups(dir, base, layout string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	type backup struct {
		name string
		at   time.Time
	}

	prefix := base + "."
	var found []backup
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, prefix) {
			continue
		}
		at, err := time.Parse(layout, strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		found = append(found, backup{name: name, at: at})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].name < found[j].name
		}
		return found[i].at.Before(found[j].at)
	})

	names := make([]string, 0, len(found))
	for _, b := range found {
		names = append(names, b.name)
	}
	return names, nil
}

// Prune removes all but the newest keep backups of base in dir. keep <= 0 keeps everything.
func Prune(dir, base, layout string, keep int) error {
	if keep <= 0 {
		return nil
	}

	names, err := Backups(dir, base, layout)
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}

	var errs error
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
