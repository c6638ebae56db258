package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aakar-gateway/internal/event"
	"aakar-gateway/internal/model"
)

// AuditService appends auth events to a JSON-lines file. It is fed from the
// event bus so request handlers never wait on disk.
type AuditService struct {
	filePath string
	mu       sync.Mutex
}

func NewAuditService(filePath string) (*AuditService, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("audit log path is required")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("initialize audit file: %w", err)
	}
	_ = f.Close()

	return &AuditService{filePath: filePath}, nil
}

// Consume records events until ctx is cancelled or the channel closes.
func (s *AuditService) Consume(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.Log(entryFromEvent(e)); err != nil {
				slog.Error("audit write failed", "error", err, "type", e.Type)
			}
		}
	}
}

func (s *AuditService) Log(entry model.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func entryFromEvent(e event.Event) model.AuditEntry {
	status := "success"
	switch e.Type {
	case event.TypeUserLoginFail, event.TypeTokenRejected:
		status = "failure"
	}

	return model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp,
		ActorID:    e.ActorID,
		Status:     status,
		Details:    e.Payload,
	}
}
