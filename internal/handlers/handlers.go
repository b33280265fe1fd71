package handlers

import (
	"time"

	"media-fetch/internal/fetcher"
	"media-fetch/internal/staging"
	"media-fetch/internal/streaming"
)

// Handlers serves the HTTP API on top of a fetcher service and its staging area.
type Handlers struct {
	fetcher   *fetcher.Service
	staging   *staging.Area
	stream    streaming.TimeoutWriterConfig
	startTime time.Time
}

func New(svc *fetcher.Service, area *staging.Area) *Handlers {
	return &Handlers{
		fetcher:   svc,
		staging:   area,
		stream:    streaming.DefaultTimeoutWriterConfig(),
		startTime: time.Now(),
	}
}
