package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

type ctxKey struct{}

var levels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

type implLogger struct {
	logger *log.Logger
	level  string
	json   bool
	out    io.Writer
}

// New creates a text Logger writing to stdout.
func New(level string) Logger {
	return NewWithFormat(level, "text", os.Stdout)
}

// NewWithFormat creates a Logger for the given format ("text" or "json").
func NewWithFormat(level, format string, out io.Writer) Logger {
	l := &implLogger{
		level: strings.ToLower(level),
		json:  strings.EqualFold(format, "json"),
		out:   out,
	}
	if !l.json {
		l.logger = log.New(out, "", log.LstdFlags)
	}
	return l
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewWithFormat("error", "text", io.Discard)
}

// WithJob returns a context whose log lines carry the job id.
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, jobID)
}

// JobID returns the job id stored by WithJob.
func JobID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (l *implLogger) shouldLog(level string) bool {
	currentLevel, ok := levels[l.level]
	if !ok {
		currentLevel = 1 // default to info
	}

	targetLevel, ok := levels[level]
	if !ok {
		return true
	}

	return targetLevel >= currentLevel
}

func (l *implLogger) write(ctx context.Context, level, msg string, args []interface{}) {
	if !l.shouldLog(level) {
		return
	}
	text := fmt.Sprintf(msg, args...)
	job := JobID(ctx)

	if l.json {
		line, err := json.Marshal(struct {
			Time  string `json:"time"`
			Level string `json:"level"`
			Job   string `json:"job,omitempty"`
			Msg   string `json:"msg"`
		}{time.Now().Format(time.RFC3339), level, job, text})
		if err != nil {
			return
		}
		l.out.Write(append(line, '\n'))
		return
	}

	prefix := "[" + strings.ToUpper(level) + "] "
	if job != "" {
		prefix += "job=" + job + " "
	}
	l.logger.Print(prefix + text)
}

func (l *implLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.write(ctx, "debug", msg, args)
}

func (l *implLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.write(ctx, "info", msg, args)
}

func (l *implLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.write(ctx, "warn", msg, args)
}

func (l *implLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.write(ctx, "error", msg, args)
}
