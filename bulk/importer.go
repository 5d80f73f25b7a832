// Package bulk loads many JSON records into a store concurrently.
package bulk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/avlondb"
	"github.com/poiesic/avlondb/keys"
)

const maxLineSize = 16 << 20

var (
	// ErrStoreRequired is returned when NewImporter is given a nil store.
	ErrStoreRequired = errors.New("store is required")

	// ErrMissingKey indicates that a record lacks the configured key field.
	ErrMissingKey = errors.New("record has no key field")

	// ErrInvalidKey indicates that the key field is not a string or number.
	ErrInvalidKey = errors.New("key field must be a non-empty string or a number")

	// ErrInvalidJSON indicates that a line is not a valid JSON value.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// KeyMode selects how each record's key is derived.
type KeyMode string

const (
	// KeyFromField reads the key from a top-level field of a JSON object.
	KeyFromField KeyMode = "field"
	// KeyFromContent hashes the record's bytes.
	KeyFromContent KeyMode = "content"
	// KeyRandom assigns a random UUID.
	KeyRandom KeyMode = "random"
)

// ParseKeyMode converts a configuration string into a KeyMode.
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case KeyFromField, KeyFromContent, KeyRandom:
		return KeyMode(s), nil
	default:
		return "", fmt.Errorf("invalid key mode %q: must be one of field, content, random", s)
	}
}

// Result summarizes an import.
type Result struct {
	Read   int
	Saved  int
	Failed int
}

// Importer saves newline-delimited JSON records into a store using a
// worker pool.
type Importer struct {
	store          *avlondb.Store
	pool           *ants.Pool
	keyMode        KeyMode
	keyField       string
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer) error

// WithWorkers sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if im.pool != nil {
			im.pool.Release()
		}
		im.pool = pool
		return nil
	}
}

// WithKeyField takes keys from the named top-level field.
// Default is "id".
func WithKeyField(field string) Option {
	return func(im *Importer) error {
		im.keyMode = KeyFromField
		im.keyField = field
		return nil
	}
}

// WithKeyMode sets how keys are derived.
func WithKeyMode(mode KeyMode) Option {
	return func(im *Importer) error {
		if _, err := ParseKeyMode(string(mode)); err != nil {
			return err
		}
		im.keyMode = mode
		return nil
	}
}

// WithProgress reports progress to w every interval records.
func WithProgress(w io.Writer, interval int) Option {
	return func(im *Importer) error {
		im.progress = w
		im.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		im.logger = logger
		return nil
	}
}

// NewImporter creates an importer writing to store.
// Call Release when done to stop the worker pool.
func NewImporter(store *avlondb.Store, opts ...Option) (*Importer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	im := &Importer{
		store:          store,
		pool:           pool,
		keyMode:        KeyFromField,
		keyField:       "id",
		reportInterval: 1000,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(im); optErr != nil {
			im.Release()
			return nil, optErr
		}
	}
	if im.keyMode == KeyFromField && im.keyField == "" {
		im.Release()
		return nil, fmt.Errorf("%w: empty key field", ErrMissingKey)
	}

	return im, nil
}

// Release stops the worker pool.
func (im *Importer) Release() {
	if im.pool != nil {
		im.pool.Release()
	}
}

type line struct {
	number int
	data   []byte
}

// Import reads one JSON value per line from r and saves each under its key.
// Blank lines are skipped. Records that fail are counted in Result.Failed and
// their errors are joined into the returned error; the other records are
// still saved.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	lines, err := readLines(r)
	if err != nil {
		return Result{}, err
	}

	result := Result{Read: len(lines)}
	tracker := NewProgressTracker(im.progress, len(lines), im.reportInterval)
	tracker.Start()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed++
			errs = append(errs, err)
		} else {
			result.Saved++
		}
	}

	for _, ln := range lines {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := im.pool.Submit(func() {
			defer wg.Done()
			err := im.save(ctx, ln)
			if err != nil {
				err = fmt.Errorf("line %d: %w", ln.number, err)
				im.logger.Debug("record import failed", "err", err)
			}
			record(err)
			tracker.Increment(1)
		})
		if submitErr != nil {
			wg.Done()
			record(fmt.Errorf("line %d: %w", ln.number, submitErr))
		}
	}
	wg.Wait()
	if im.progress != nil {
		tracker.Finish()
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	im.logger.Info("import finished", "read", result.Read, "saved", result.Saved, "failed", result.Failed)
	return result, errors.Join(errs...)
}

func (im *Importer) save(ctx context.Context, ln line) error {
	if !json.Valid(ln.data) {
		return ErrInvalidJSON
	}
	key, err := im.keyFor(ln.data)
	if err != nil {
		return err
	}
	return avlondb.Save(ctx, im.store, key, json.RawMessage(ln.data))
}

func (im *Importer) keyFor(data []byte) (string, error) {
	switch im.keyMode {
	case KeyFromContent:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", err
		}
		return keys.FromContent(buf.Bytes()), nil
	case KeyRandom:
		return keys.Random(), nil
	default:
		return fieldKey(data, im.keyField)
	}
}

func fieldKey(data []byte, field string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, field)
	}
	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, field)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrInvalidKey
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", ErrInvalidKey
}

func readLines(r io.Reader) ([]line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var lines []line
	number := 0
	for scanner.Scan() {
		number++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		lines = append(lines, line{number: number, data: bytes.Clone(data)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return lines, nil
}
