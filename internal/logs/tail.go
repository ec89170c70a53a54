package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

const maxLineBytes = 1024 * 1024

// DefaultPoll is how often Follow checks the file for growth.
const DefaultPoll = 250 * time.Millisecond

// Chunk is a batch of complete lines and the byte offset just past them.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Reader tails files on a filesystem. The zero value reads the host.
type Reader struct {
	Fs   afero.Fs
	Poll time.Duration
}

func (r Reader) fs() afero.Fs {
	if r.Fs == nil {
		return afero.NewOsFs()
	}
	return r.Fs
}

// Last returns up to n trailing lines of path. A missing file yields an empty
// chunk at offset 0 so a later Follow picks up the file once it appears.
func (r Reader) Last(path string, n int) (Chunk, error) {
	file, err := r.open(path)
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	offset, err := scanLines(file, func(line string) {
		if n <= 0 {
			return
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Lines: ring, Offset: offset}, nil
}

// From returns the lines written at or after offset. An offset past the end
// means the file was truncated or rotated, and reading restarts at 0.
func (r Reader) From(path string, offset int64) (Chunk, error) {
	file, err := r.open(path)
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}

	chunk := Chunk{Offset: offset}
	consumed, err := scanLines(file, func(line string) {
		chunk.Lines = append(chunk.Lines, line)
	})
	if err != nil {
		return Chunk{}, err
	}
	chunk.Offset += consumed
	return chunk, nil
}

// Follow calls emit for every line appended after offset until ctx ends.
// Cancellation is a normal stop and returns nil.
func (r Reader) Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	poll := r.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		chunk, err := r.From(path, offset)
		if err != nil {
			return err
		}
		for _, line := range chunk.Lines {
			emit(line)
		}
		offset = chunk.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r Reader) open(path string) (afero.File, error) {
	file, err := r.fs().Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines feeds complete lines to fn and returns the bytes they occupied.
// A trailing line without a newline is left for the next read.
func scanLines(src io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(src, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			text := line[:len(line)-1]
			if n := len(text); n > 0 && text[n-1] == '\r' {
				text = text[:n-1]
			}
			if len(text) > maxLineBytes {
				text = text[:maxLineBytes]
			}
			fn(text)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
