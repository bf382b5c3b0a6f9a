// Package stream decodes the incremental response bodies of LLM APIs and
// turns them into driven.StreamChunk channels.
//
// Two wire formats are handled: server-sent events (OpenAI, DeepSeek,
// Anthropic) and newline-delimited JSON (Ollama).
package stream

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// maxLineSize bounds a single SSE or NDJSON line.
const maxLineSize = 1 << 20

// SSE calls fn with the event name and joined data lines of every event in r.
// fn returns false to stop reading. Comment lines are skipped.
func SSE(r io.Reader, fn func(event, data string) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var event string
	var data []string
	dispatch := func() (bool, error) {
		if len(data) == 0 {
			event = ""
			return true, nil
		}
		more, err := fn(event, strings.Join(data, "\n"))
		event, data = "", data[:0]
		return more, err
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			more, err := dispatch()
			if err != nil || !more {
				return err
			}
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	_, err := dispatch()
	return err
}

// Lines calls fn with every non-blank line in r. fn returns false to stop.
func Lines(r io.Reader, fn func(line []byte) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		more, err := fn(line)
		if err != nil || !more {
			return err
		}
	}
	return sc.Err()
}

// Emit delivers one text delta. It returns false once the consumer is gone.
type Emit func(delta string) bool

// Pump runs decode over body in a goroutine and forwards deltas to the
// returned channel. The channel is closed when decode returns. A decode
// error is sent as the last chunk unless ctx was cancelled.
func Pump(ctx context.Context, body io.ReadCloser, decode func(r io.Reader, emit Emit) error) <-chan driven.StreamChunk {
	out := make(chan driven.StreamChunk)
	go func() {
		defer close(out)
		defer body.Close()

		emit := func(delta string) bool {
			if delta == "" {
				return ctx.Err() == nil
			}
			select {
			case out <- driven.StreamChunk{Content: delta}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if err := decode(body, emit); err != nil && ctx.Err() == nil {
			select {
			case out <- driven.StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// Collect drains a stream into a single string.
func Collect(ch <-chan driven.StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Content)
	}
	return sb.String(), nil
}
