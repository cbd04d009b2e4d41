package executor

import "context"

// Executor runs external tools (ffmpeg, whisper.cpp) and returns their stdout.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
	ExecuteInDir(ctx context.Context, dir string, name string, args ...string) (string, error)
	// LookPath reports whether name can be executed.
	LookPath(name string) (string, error)
}
