package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// TailOptions selects what Tail reads. A negative Offset means "the last
// Limit matching records"; otherwise reading starts at Offset. With Follow,
// Tail polls for up to Wait until a matching record is appended.
type TailOptions struct {
	Filter Filter
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult holds the matching records read and the offset to continue
// from. Done is set once the filter's final record has been read.
type TailResult struct {
	Entries []Entry
	Offset  int64
	Done    bool
}

const pollInterval = 250 * time.Millisecond

// Tail reads records from the log file at path, keeping those that pass
// opts.Filter. A missing file yields nothing.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	if opts.Offset < 0 {
		result, err = lastEntries(path, opts.Filter, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		result, err = scanFrom(path, opts.Filter, offset)
	}
	if err != nil || result.Done || len(result.Entries) > 0 || !opts.Follow || opts.Wait == 0 {
		return result, err
	}
	return waitForEntries(ctx, path, opts.Filter, result.Offset, opts.Wait)
}

// lastEntries scans the whole file and keeps the last limit matches. Done
// reflects whether the final record appeared anywhere in the file.
func lastEntries(path string, filter Filter, limit int) (TailResult, error) {
	var (
		ring  []Entry
		next  int
		count int
	)
	if limit > 0 {
		ring = make([]Entry, limit)
	}
	done := false
	offset, err := scan(path, 0, filter, func(e Entry) {
		if filter.Final(e) {
			done = true
		}
		if limit <= 0 {
			return
		}
		ring[next] = e
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	entries := make([]Entry, count)
	if count == limit && limit > 0 {
		for i := range entries {
			entries[i] = ring[(next+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	return TailResult{Entries: entries, Offset: offset, Done: done}, nil
}

func scanFrom(path string, filter Filter, offset int64) (TailResult, error) {
	result := TailResult{Offset: offset}
	end, err := scan(path, offset, filter, func(e Entry) {
		result.Entries = append(result.Entries, e)
		if filter.Final(e) {
			result.Done = true
		}
	})
	if err != nil {
		return result, err
	}
	result.Offset = end
	return result, nil
}

// scan feeds every complete record after offset that passes filter to fn and
// returns the offset just past the last complete line. A trailing partial
// line is left for the next call.
func scan(path string, offset int64, filter Filter, fn func(Entry)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	pos := offset
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Oversized records are skipped whole.
			n, skipErr := skipLine(reader)
			if skipErr != nil {
				return pos, nil
			}
			pos += int64(len(line)) + n
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return pos, nil
			}
			return pos, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(line))
		if e, perr := ParseEntry(string(line)); perr == nil && filter.Match(e) {
			fn(e)
		}
	}
}

func skipLine(r *bufio.Reader) (int64, error) {
	var n int64
	for {
		chunk, err := r.ReadSlice('\n')
		n += int64(len(chunk))
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return n, err
	}
}

func waitForEntries(ctx context.Context, path string, filter Filter, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		next, err := scanFrom(path, filter, result.Offset)
		if err != nil {
			return result, err
		}
		if len(next.Entries) > 0 || next.Done {
			return next, nil
		}
		result.Offset = next.Offset
		if time.Now().After(deadline) {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
