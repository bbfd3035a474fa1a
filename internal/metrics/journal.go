package metrics

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Journal is a durable append-only event log, one JSON record per line.
// A collector backed by a journal can be reconstructed by replaying it;
// replay reproduces identical derived aggregates because the journal
// carries the full history and nothing else is authoritative.
type Journal struct {
	log  logrus.FieldLogger
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// OpenJournal opens (or creates) the journal at path for appending.
func OpenJournal(log logrus.FieldLogger, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	return &Journal{
		log:    log.WithField("component", "metrics_journal"),
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append writes one event record and flushes it to the file. Events are
// durable in file order, matching the in-memory history order.
func (j *Journal) Append(ev Event) error {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("journal closed")
	}

	if _, err := j.writer.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	return j.writer.Flush()
}

// Close flushes and closes the underlying file. Safe to call once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	flushErr := j.writer.Flush()
	closeErr := j.file.Close()
	j.file = nil
	j.writer = nil

	if flushErr != nil {
		return fmt.Errorf("flushing journal: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing journal: %w", closeErr)
	}

	return nil
}

// ReadEvents loads the full ordered event history from a journal file.
func ReadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = file.Close() }()

	events := make([]Event, 0, 256)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decoding journal line %d: %w", line, err)
		}

		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	return events, nil
}

// Replay reconstructs a collector from a persisted journal. The rebuilt
// collector derives the same aggregates as the live run that produced
// the journal.
func Replay(log logrus.FieldLogger, path string, opts ...Option) (Collector, error) {
	events, err := ReadEvents(path)
	if err != nil {
		return nil, err
	}

	c := NewCollector(log, opts...).(*collector)
	c.events = append(c.events, events...)

	log.WithFields(logrus.Fields{
		"path":   path,
		"events": len(events),
	}).Debug("journal replayed")

	return c, nil
}
