package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// maxLineBytes bounds a single JSON line. Diffs in task_complete events can be large.
const maxLineBytes = 16 * 1024 * 1024

// EncodeEvent renders ev as a single line of JSON text (no trailing newline).
func EncodeEvent(ev Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", errors.NewSerializationError("event", err)
	}
	return string(data), nil
}

// DecodeSubmission parses a submission from JSON text.
func DecodeSubmission(text string) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal([]byte(text), &sub); err != nil {
		return Submission{}, errors.NewSerializationError("submission", err)
	}
	if len(sub.Op) == 0 || sub.Type() == "" {
		return Submission{}, errors.NewSerializationError("submission",
			fmt.Errorf("missing field `op` or its `type`"))
	}
	return sub, nil
}

// Reader reads newline-delimited JSON values.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{scanner: scanner}
}

// next returns the next non-blank line, or io.EOF.
func (r *Reader) next() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ReadEvent returns the next event. It returns ErrStreamClosed at end of input.
func (r *Reader) ReadEvent() (Event, error) {
	line, err := r.next()
	if err == io.EOF {
		return Event{}, ErrStreamClosed
	}
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, errors.NewSerializationError("event", err)
	}
	return ev, nil
}

// ReadLine returns the next non-blank line as text, or io.EOF.
func (r *Reader) ReadLine() (string, error) {
	line, err := r.next()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// Writer writes newline-delimited JSON values. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteSubmission writes sub as one JSON line.
func (w *Writer) WriteSubmission(sub Submission) error {
	return w.write("submission", sub)
}

// WriteEvent writes ev as one JSON line.
func (w *Writer) WriteEvent(ev Event) error {
	return w.write("event", ev)
}

func (w *Writer) write(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewSerializationError(kind, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(data)
	return err
}
