// Package sidelog appends free-form thoughts and reminders to CSV files
// next to the record store.
//
// Both files are append-only. The header row is written when a file is
// created; every event is one row.
package sidelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/recordpilot/internal/records"
)

const (
	ThoughtsFile  = "thoughts.csv"
	RemindersFile = "reminders.csv"

	timestampLayout = "2006-01-02 15:04:05"
)

var (
	thoughtsHeader  = []string{"timestamp", "thought", "category", "tags"}
	remindersHeader = []string{"timestamp", "reminder", "due_time", "priority", "category"}
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Thought is one row of thoughts.csv.
type Thought struct {
	Timestamp string   `json:"timestamp"`
	Text      string   `json:"thought"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}

// Reminder is one row of reminders.csv.
type Reminder struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"reminder"`
	DueTime   string `json:"due_time"`
	Priority  string `json:"priority"`
	Category  string `json:"category"`
}

// Due parses DueTime with the record date formats. A bare clock time
// ("21:30") is due on the day the reminder was logged.
func (r Reminder) Due() (time.Time, bool) {
	if t, ok := records.ParseDate(r.DueTime); ok {
		return t, true
	}
	clock, err := time.Parse("15:04", r.DueTime)
	if err != nil {
		return time.Time{}, false
	}
	logged, err := time.Parse(timestampLayout, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := logged.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, time.UTC), true
}

// Log writes the side-channel files in one directory.
type Log struct {
	dir string
	mu  sync.Mutex
}

// New creates the directory if needed.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("sidelog: create dir: %w", err)
	}
	return &Log{dir: dir}, nil
}

// Dir returns the directory holding the CSV files.
func (l *Log) Dir() string { return l.dir }

// Thought appends a thought. Category defaults to "general".
func (l *Log) Thought(text, category string, tags []string) (Thought, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Thought{}, errors.New("sidelog: thought is required")
	}
	if category == "" {
		category = "general"
	}
	t := Thought{Timestamp: timeNow().Format(timestampLayout), Text: text, Category: category, Tags: tags}
	err := l.append(ThoughtsFile, thoughtsHeader, []string{t.Timestamp, t.Text, t.Category, strings.Join(tags, ", ")})
	return t, err
}

// Reminder appends a reminder. Priority defaults to "medium" and category
// to "general".
func (l *Log) Reminder(text, dueTime, priority, category string) (Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reminder{}, errors.New("sidelog: reminder is required")
	}
	if priority == "" {
		priority = "medium"
	}
	if category == "" {
		category = "general"
	}
	r := Reminder{
		Timestamp: timeNow().Format(timestampLayout),
		Text:      text,
		DueTime:   strings.TrimSpace(dueTime),
		Priority:  priority,
		Category:  category,
	}
	err := l.append(RemindersFile, remindersHeader, []string{r.Timestamp, r.Text, r.DueTime, r.Priority, r.Category})
	return r, err
}

// Reminders returns every logged reminder in file order.
func (l *Log) Reminders() ([]Reminder, error) {
	rows, err := l.read(RemindersFile)
	if err != nil {
		return nil, err
	}
	out := make([]Reminder, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(remindersHeader) {
			continue
		}
		out = append(out, Reminder{Timestamp: row[0], Text: row[1], DueTime: row[2], Priority: row[3], Category: row[4]})
	}
	return out, nil
}

// Thoughts returns every logged thought in file order.
func (l *Log) Thoughts() ([]Thought, error) {
	rows, err := l.read(ThoughtsFile)
	if err != nil {
		return nil, err
	}
	out := make([]Thought, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(thoughtsHeader) {
			continue
		}
		var tags []string
		for _, tag := range strings.Split(row[3], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		out = append(out, Thought{Timestamp: row[0], Text: row[1], Category: row[2], Tags: tags})
	}
	return out, nil
}

// RemindersDue returns reminders whose due time falls on the calendar day
// of day. Reminders without a parseable due time are skipped.
func (l *Log) RemindersDue(day time.Time) ([]Reminder, error) {
	all, err := l.Reminders()
	if err != nil {
		return nil, err
	}
	y, m, d := day.Date()
	var out []Reminder
	for _, r := range all {
		due, ok := r.Due()
		if !ok {
			continue
		}
		if dy, dm, dd := due.Date(); dy == y && dm == m && dd == d {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Log) append(name string, header, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, name)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("sidelog: open %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("sidelog: write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("sidelog: write %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("sidelog: flush %s: %w", name, err)
	}
	return nil
}

// read returns the data rows of a file, without the header. A missing
// file has no rows.
func (l *Log) read(name string) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sidelog: open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sidelog: read %s: %w", name, err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
