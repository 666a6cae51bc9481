package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu    sync.Mutex
	sink  *log.Logger
	debug bool
)

// entry is one JSONL log line. The database alias a message concerns is
// hoisted out of the field map into its own key, so routed operations
// can be traced per alias across the log.
type entry struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	DB     string         `json:"db,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Init configures JSONL logging into log/app.log under baseDir.
func Init(baseDir string) error {
	logDir := filepath.Join(baseDir, "log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	mu.Lock()
	sink = log.New(f, "", 0)
	mu.Unlock()
	return nil
}

func SetDebug(enabled bool) {
	mu.Lock()
	debug = enabled
	mu.Unlock()
}

func Debug(msg string, fields map[string]any) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	write("debug", msg, fields)
}

func Info(msg string, fields map[string]any) {
	write("info", msg, fields)
}

func Warn(msg string, fields map[string]any) {
	write("warn", msg, fields)
}

func Error(msg string, fields map[string]any) {
	write("error", msg, fields)
}

func write(level, msg string, fields map[string]any) {
	e := entry{
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		Level: level,
		Msg:   msg,
	}
	if len(fields) > 0 {
		// the caller's map stays untouched
		rest := make(map[string]any, len(fields))
		for k, v := range fields {
			if k == "db" {
				if alias, ok := v.(string); ok {
					e.DB = alias
					continue
				}
			}
			rest[k] = v
		}
		if len(rest) > 0 {
			e.Fields = rest
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		// logging before Init (unit tests mostly) goes nowhere
		sink = log.New(io.Discard, "", 0)
	}
	enc, err := json.Marshal(e)
	if err != nil {
		sink.Printf(`{"ts":"%s","level":"error","msg":"log_marshal_failed","fields":{"error":%q}}`,
			time.Now().UTC().Format(time.RFC3339Nano), err.Error())
		return
	}
	sink.Println(string(enc))
}
