// Package output mirrors realtime events to an external destination so they
// can be inspected or replayed outside the client.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chrisdamba/chowrider/internal/models"
)

type Destination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

// Record is the envelope written for every mirrored event.
type Record struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// New picks the destination named by cfg. A nil destination with a nil error
// means mirroring is off.
func New(ctx context.Context, cfg models.OutputConfig, logger *slog.Logger) (Destination, error) {
	switch cfg.Destination {
	case "", "none":
		return nil, nil
	case "console":
		return NewConsoleOutput(os.Stdout), nil
	case "file":
		return NewJSONOutput(cfg.FilePath), nil
	case "kafka":
		return NewKafkaOutput(cfg.KafkaBrokerList, logger)
	case "rabbitmq":
		return NewRabbitMQOutput(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
	case "postgres":
		return NewPostgresOutput(ctx, cfg.PostgresDSN, cfg.PostgresTable)
	default:
		return nil, fmt.Errorf("unsupported output destination: %s", cfg.Destination)
	}
}

// Topic turns an event name into a topic under prefix, e.g. "chowrider.order_taken".
func Topic(prefix, event string) string {
	event = strings.ReplaceAll(event, "-", "_")
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}

type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "[%s] %s\n", topic, msg); err != nil {
		return fmt.Errorf("failed to write to console: %w", err)
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

// JSONOutput appends records as JSON lines under
// basePath/topic/year=YYYY/month=MM/day=DD/hour=HH/data.json.
type JSONOutput struct {
	basePath string

	mu    sync.Mutex
	files map[string]*os.File
}

func NewJSONOutput(basePath string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		files:    make(map[string]*os.File),
	}
}

func partitionPath(t time.Time) string {
	year, month, day := t.Date()
	return fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d", year, month, day, t.Hour())
}

func recordTime(msg []byte) (time.Time, error) {
	var rec struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(msg, &rec); err != nil {
		return time.Time{}, err
	}
	if rec.Timestamp == 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp")
	}
	return time.UnixMilli(rec.Timestamp).UTC(), nil
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	eventTime, err := recordTime(msg)
	if err != nil {
		return err
	}
	partition := partitionPath(eventTime)
	fileKey := topic + "_" + partition

	j.mu.Lock()
	defer j.mu.Unlock()

	file, ok := j.files[fileKey]
	if !ok {
		fullPath := filepath.Join(j.basePath, topic, partition)
		if err := os.MkdirAll(fullPath, 0o755); err != nil {
			return err
		}
		file, err = os.OpenFile(filepath.Join(fullPath, "data.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		j.files[fileKey] = file
	}

	if _, err := file.Write(msg); err != nil {
		return err
	}
	_, err = file.WriteString("\n")
	return err
}

func (j *JSONOutput) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var lastErr error
	for key, file := range j.files {
		if err := file.Close(); err != nil {
			lastErr = err
		}
		delete(j.files, key)
	}
	return lastErr
}
