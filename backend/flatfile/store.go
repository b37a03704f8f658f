// Package flatfile keeps small per-day records in line-oriented text files.
// Each line starts with a YYYY-MM-DD date followed by comma-separated fields;
// saving a record for a date replaces that date's line.
package flatfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"imanconnect/backend"
	"imanconnect/internal/utils"
)

// Codec converts a record to and from the fields that follow the date.
type Codec[R any] interface {
	Encode(rec R) string
	Decode(fields string) (R, error)
}

// Day pairs a record with the date of its line.
type Day[R any] struct {
	Date   time.Time
	Record R
}

// WriteObserver is told about every file rewrite. metrics.Registry implements it.
type WriteObserver interface {
	ObserveFlatFileWrite(file string, err error)
}

type options struct {
	now      func() time.Time
	observer WriteObserver
}

// Option configures a store
type Option func(*options)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithWriteObserver reports rewrites.
func WithWriteObserver(w WriteObserver) Option {
	return func(o *options) {
		o.observer = w
	}
}

// Store is a daily record file. All access is serialized by a mutex; the file
// is rewritten whole through a temp file and rename.
type Store[R any] struct {
	path  string
	codec Codec[R]
	opts  options
	log   *utils.Logger
	mu    sync.Mutex
}

// NewStore creates a store for path. The file need not exist.
func NewStore[R any](path string, codec Codec[R], opts ...Option) *Store[R] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[R]{
		path:  path,
		codec: codec,
		opts:  o,
		log:   utils.GetLogger().Component("flatfile"),
	}
}

// Path returns the backing file path.
func (s *Store[R]) Path() string {
	return s.path
}

// Today returns the current calendar day at midnight, local time.
func (s *Store[R]) Today() time.Time {
	return truncateDay(s.opts.now())
}

// LoadToday returns today's record.
func (s *Store[R]) LoadToday() (R, bool) {
	return s.Load(s.Today())
}

// Load returns the record for date. A missing file, a missing line or an
// unreadable line all yield ok == false; read errors are logged.
func (s *Store[R]) Load(date time.Time) (rec R, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		s.log.Warn("read %s: %v", s.path, err)
		return rec, false
	}
	key := backend.FormatDate(date)
	for _, line := range lines {
		date, fields, found := splitLine(line)
		if !found || date != key {
			continue
		}
		r, err := s.codec.Decode(fields)
		if err != nil {
			s.log.Warn("parse %s line for %s: %v", filepath.Base(s.path), key, err)
			return rec, false
		}
		return r, true
	}
	return rec, false
}

// SaveToday stores rec as today's record.
func (s *Store[R]) SaveToday(rec R) error {
	return s.Save(s.Today(), rec)
}

// Save stores rec for date, replacing an existing line for that date.
func (s *Store[R]) Save(date time.Time, rec R) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(date, rec)
}

// Update applies fn to the record for date under the store lock and saves
// the result. fn receives the zero record and false when none exists.
func (s *Store[R]) Update(date time.Time, fn func(rec R, ok bool) R) (R, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current R
	ok := false
	lines, err := s.readLines()
	if err != nil {
		s.log.Warn("read %s: %v", s.path, err)
	}
	key := backend.FormatDate(date)
	for _, line := range lines {
		d, fields, found := splitLine(line)
		if found && d == key {
			if r, err := s.codec.Decode(fields); err == nil {
				current, ok = r, true
			}
			break
		}
	}

	next := fn(current, ok)
	if err := s.save(date, next); err != nil {
		return current, err
	}
	return next, nil
}

// Range returns the records dated from..to inclusive, oldest first.
// Unreadable lines are skipped.
func (s *Store[R]) Range(from, to time.Time) []Day[R] {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		s.log.Warn("read %s: %v", s.path, err)
		return nil
	}
	lo, hi := truncateDay(from), truncateDay(to)

	var days []Day[R]
	for _, line := range lines {
		dateStr, fields, found := splitLine(line)
		if !found {
			continue
		}
		d, err := time.ParseInLocation(backend.DateLayout, dateStr, lo.Location())
		if err != nil || d.Before(lo) || d.After(hi) {
			continue
		}
		rec, err := s.codec.Decode(fields)
		if err != nil {
			continue
		}
		days = append(days, Day[R]{Date: d, Record: rec})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

func (s *Store[R]) save(date time.Time, rec R) (err error) {
	defer func() {
		if s.opts.observer != nil {
			s.opts.observer.ObserveFlatFileWrite(filepath.Base(s.path), err)
		}
	}()

	lines, err := s.readLines()
	if err != nil {
		// A damaged file is replaced rather than blocking today's save.
		s.log.Warn("read %s before save: %v", s.path, err)
		lines = nil
	}

	key := backend.FormatDate(date)
	newLine := key + "," + s.codec.Encode(rec)
	replaced := false
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		d, _, found := splitLine(line)
		if found && d == key {
			if !replaced {
				out = append(out, newLine)
				replaced = true
			}
			continue
		}
		out = append(out, line)
	}
	if !replaced {
		out = append(out, newLine)
	}
	return s.writeLines(out)
}

func (s *Store[R]) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func (s *Store[R]) writeLines(lines []string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// splitLine separates the leading date token from the remaining fields.
func splitLine(line string) (date, fields string, ok bool) {
	date, fields, ok = strings.Cut(line, ",")
	if !ok || len(date) != len(backend.DateLayout) {
		return "", "", false
	}
	return date, fields, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
