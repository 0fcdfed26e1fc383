package capture

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hpcloud/tail"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reader loads capture logs written by the recorder. The log is one JSON
// entry per line; malformed lines are skipped with a warning rather than
// failing the whole load, since a crashed recorder can leave a truncated
// final line.
type Reader struct {
	log *zap.Logger
}

func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{log: logger.Named("capture.reader")}
}

// LoadLog reads every entry from a capture log file.
func (r *Reader) LoadLog(path string) ([]schemas.CaptureEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture log: %w", err)
	}
	defer f.Close()

	var entries []schemas.CaptureEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	skipped := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry schemas.CaptureEntry
		if err := json.UnmarshalFromString(text, &entry); err != nil {
			skipped++
			r.log.Warn("Skipping malformed capture entry.",
				zap.String("path", path),
				zap.Int("line", line),
				zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read capture log: %w", err)
	}
	if skipped > 0 {
		r.log.Info("Loaded capture log with malformed entries skipped.",
			zap.String("path", path),
			zap.Int("loaded", len(entries)),
			zap.Int("skipped", skipped))
	}
	return entries, nil
}

// Follow streams entries from a capture log as they are appended, the way a
// live inference session consumes an active recorder's output. The returned
// channel closes when ctx is canceled or the tail ends.
func (r *Reader) Follow(ctx context.Context, path string) (<-chan schemas.CaptureEntry, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tail capture log: %w", err)
	}

	out := make(chan schemas.CaptureEntry)
	go func() {
		defer close(out)
		defer t.Cleanup()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case tailed, ok := <-t.Lines:
				if !ok {
					return
				}
				if tailed.Err != nil {
					r.log.Warn("Capture log tail error.", zap.Error(tailed.Err))
					continue
				}
				text := strings.TrimSpace(tailed.Text)
				if text == "" {
					continue
				}
				var entry schemas.CaptureEntry
				if err := json.UnmarshalFromString(text, &entry); err != nil {
					r.log.Warn("Skipping malformed capture entry.", zap.Error(err))
					continue
				}
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
