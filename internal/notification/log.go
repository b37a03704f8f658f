package notification

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultLogMaxMB = 10

// logNotificationChannel appends one line per notification to a file. The file
// is moved to <path>.old once it reaches MaxSizeMB.
type logNotificationChannel struct {
	config *LogNotificationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewLogNotificationChannel creates a new log notification channel
func NewLogNotificationChannel(cfg *LogNotificationConfig) NotificationChannel {
	return &logNotificationChannel{config: cfg}
}

// FormatLogLine renders n the way the log stores it:
//
//	2026-01-16T10:30:00Z [QUESTION_SUBMITTED] SCHOLAR_3 aisha asked about ...
func FormatLogLine(n Notification) string {
	return fmt.Sprintf("%s [%s] %s %s",
		n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		strings.ToUpper(string(n.Type)),
		n.Recipient,
		n.Message)
}

func (c *logNotificationChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		if err := c.open(); err != nil {
			return err
		}
	}

	written, err := c.file.WriteString(FormatLogLine(n) + "\n")
	c.size += int64(written)
	if err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return err
	}

	if c.size >= c.limit() {
		// the next Send rotates on open
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

// open rotates an oversized file out of the way and opens the log for append.
func (c *logNotificationChannel) open() error {
	path := c.config.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case info.Size() >= c.limit():
		if err := os.Rename(path, path+".old"); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	c.file, c.size = f, st.Size()
	return nil
}

func (c *logNotificationChannel) limit() int64 {
	mb := c.config.MaxSizeMB
	if mb <= 0 {
		mb = defaultLogMaxMB
	}
	return int64(mb) << 20
}

func (c *logNotificationChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// ReadLog returns the log's lines, oldest first. A missing log has no lines.
func ReadLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// ClearLog empties the log. Clearing a missing log is not an error.
func ClearLog(path string) error {
	if err := os.Truncate(path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
