package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Uploader stores bytes at a remote path.
type Uploader interface {
	UploadBytes(ctx context.Context, data []byte, remotePath string) error
}

// Nop is the Uploader used when backup is disabled.
type Nop struct{}

func (Nop) UploadBytes(ctx context.Context, data []byte, remotePath string) error { return nil }

// Snapshotter produces the bytes to back up.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

// Mirror uploads a snapshot of the workbook after each commit. Uploads are
// serialized; a failed upload is returned, never retried beyond the
// client's own backoff.
type Mirror struct {
	mu         sync.Mutex
	uploader   Uploader
	source     Snapshotter
	remotePath string
	onSuccess  func(time.Time)
	logger     *slog.Logger
}

// NewMirror returns a Mirror writing to remotePath. onSuccess, if not nil,
// is called with the upload time after each successful upload.
func NewMirror(uploader Uploader, source Snapshotter, remotePath string, onSuccess func(time.Time), logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if uploader == nil {
		uploader = Nop{}
	}
	return &Mirror{
		uploader:   uploader,
		source:     source,
		remotePath: remotePath,
		onSuccess:  onSuccess,
		logger:     logger,
	}
}

func (m *Mirror) Mirror(ctx context.Context) error {
	if _, ok := m.uploader.(Nop); ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.source.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshotting workbook: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if err := m.uploader.UploadBytes(ctx, data, m.remotePath); err != nil {
		return fmt.Errorf("mirroring to %s: %w", m.remotePath, err)
	}
	m.logger.Debug("workbook mirrored", "path", m.remotePath, "elapsed", time.Since(start))

	if m.onSuccess != nil {
		m.onSuccess(time.Now())
	}
	return nil
}
