package handlers

import (
	"context"
	"io"
	"time"

	"mov-converter/internal/downloads"
	"mov-converter/internal/gateway"
	"mov-converter/internal/startup"
	"mov-converter/internal/streaming"
)

// Processor converts one uploaded file.
type Processor interface {
	Process(ctx context.Context, upload io.Reader) (*gateway.Outcome, error)
}

// EngineStatus reports on the conversion engine.
type EngineStatus interface {
	Available() bool
	EngineVersion() string
	ActiveCount() int
}

// WorkspaceStatus reports whether temp files can be written.
type WorkspaceStatus interface {
	CheckWritable() error
}

type Handlers struct {
	processor    Processor
	downloads    *downloads.Store
	engine       EngineStatus
	workspace    WorkspaceStatus
	passwordHash []byte
	streamConfig streaming.Config
	startTime    time.Time
}

func New(proc Processor, store *downloads.Store, engine EngineStatus, ws WorkspaceStatus, config *startup.Config) *Handlers {
	return &Handlers{
		processor:    proc,
		downloads:    store,
		engine:       engine,
		workspace:    ws,
		passwordHash: []byte(config.AuthPasswordHash),
		streamConfig: streaming.DefaultConfig(),
		startTime:    time.Now(),
	}
}
