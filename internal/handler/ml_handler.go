package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"aakar-gateway/internal/event"
	"aakar-gateway/internal/mlclient"
	"aakar-gateway/internal/model"
)

type houseGenerator interface {
	Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerationResponse, error)
	GenerateExample(ctx context.Context, exampleID string) (*model.GenerationResponse, error)
	Examples(ctx context.Context) (json.RawMessage, error)
	Styles(ctx context.Context) (json.RawMessage, error)
	Health(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context) (json.RawMessage, error)
	Download(ctx context.Context, filePath string) (*mlclient.FileStream, error)
}

const (
	msgGenerationFailed = "House generation failed"
	msgRelayFailed      = "Generation service request failed"
	msgDownloadFailed   = "Download failed"

	copyChunkBytes = 32 << 10
)

// MLHandler relays generation requests to the external service and passes
// its answers back without reshaping them.
type MLHandler struct {
	client houseGenerator
	bus    event.Bus
}

func NewMLHandler(client houseGenerator, bus event.Bus) *MLHandler {
	return &MLHandler{client: client, bus: bus}
}

func (h *MLHandler) GenerateHouse(w http.ResponseWriter, r *http.Request) {
	var payload model.GenerateRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, model.RelayError{
			Success: false,
			Message: "Invalid request",
			Error:   "Invalid JSON body",
		})
		return
	}

	payload.Description = strings.TrimSpace(payload.Description)
	if payload.Description == "" {
		writeJSON(w, http.StatusBadRequest, model.RelayError{
			Success: false,
			Message: "Description is required",
			Error:   "Missing 'description' in request body",
		})
		return
	}

	result, err := h.client.Generate(r.Context(), payload)
	if err != nil {
		h.writeRelayError(w, r, msgGenerationFailed, err)
		return
	}

	h.publishGenerated(r, map[string]any{"style": payload.Style, "success": result.Success})
	writeJSON(w, http.StatusOK, result)
}

func (h *MLHandler) GenerateExample(w http.ResponseWriter, r *http.Request) {
	exampleID := strings.TrimSpace(chi.URLParam(r, "id"))
	if exampleID == "" {
		writeJSON(w, http.StatusBadRequest, model.RelayError{
			Success: false,
			Message: "Example id is required",
		})
		return
	}

	result, err := h.client.GenerateExample(r.Context(), exampleID)
	if err != nil {
		h.writeRelayError(w, r, msgGenerationFailed, err)
		return
	}

	h.publishGenerated(r, map[string]any{"example": exampleID, "success": result.Success})
	writeJSON(w, http.StatusOK, result)
}

func (h *MLHandler) Examples(w http.ResponseWriter, r *http.Request) {
	h.relayRaw(w, r, h.client.Examples)
}

func (h *MLHandler) Styles(w http.ResponseWriter, r *http.Request) {
	h.relayRaw(w, r, h.client.Styles)
}

func (h *MLHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.relayRaw(w, r, h.client.Health)
}

func (h *MLHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.relayRaw(w, r, h.client.Status)
}

// Download streams a generated file from the service to the client. Headers
// describing the file are passed through and the body is flushed chunk by
// chunk instead of being held in memory.
func (h *MLHandler) Download(w http.ResponseWriter, r *http.Request) {
	filePath := strings.Trim(chi.URLParam(r, "*"), "/")
	if !validDownloadPath(filePath) {
		writeJSON(w, http.StatusBadRequest, model.RelayError{
			Success: false,
			Message: msgDownloadFailed,
			Error:   "Invalid file path",
		})
		return
	}

	stream, err := h.client.Download(r.Context(), filePath)
	if err != nil {
		h.writeRelayError(w, r, msgDownloadFailed, err)
		return
	}
	defer stream.Body.Close()

	header := w.Header()
	header.Set("Content-Type", stream.ContentType)
	if stream.ContentType == "" {
		header.Set("Content-Type", "application/octet-stream")
	}
	if stream.ContentDisposition != "" {
		header.Set("Content-Disposition", stream.ContentDisposition)
	}
	if stream.ContentLength >= 0 {
		header.Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if written, err := copyFlushing(w, stream.Body); err != nil {
		slog.Warn("download relay interrupted",
			"path", filePath,
			"bytes", written,
			"error", err.Error())
	}
}

func validDownloadPath(filePath string) bool {
	if filePath == "" || strings.Contains(filePath, "\\") {
		return false
	}
	return path.Clean("/"+filePath) == "/"+filePath
}

func copyFlushing(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, copyChunkBytes)

	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, writeErr
			}
			_ = rc.Flush()
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (h *MLHandler) relayRaw(w http.ResponseWriter, r *http.Request, fetch func(context.Context) (json.RawMessage, error)) {
	body, err := fetch(r.Context())
	if err != nil {
		h.writeRelayError(w, r, msgRelayFailed, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *MLHandler) writeRelayError(w http.ResponseWriter, r *http.Request, failure string, err error) {
	var upstream *mlclient.UpstreamError
	if errors.As(err, &upstream) {
		slog.Warn("generation service rejected request",
			"path", r.URL.Path,
			"status", upstream.Status,
			"error", upstream.Message)
		writeJSON(w, upstream.Status, model.RelayError{
			Success: false,
			Message: failure,
			Error:   upstream.Message,
		})
		return
	}

	slog.Error("generation service call failed", "path", r.URL.Path, "error", err.Error())

	if !mlclient.IsUnavailable(err) {
		writeJSON(w, http.StatusInternalServerError, model.RelayError{
			Success: false,
			Message: failure,
			Error:   msgInternal,
		})
		return
	}

	status := http.StatusBadGateway
	message := "ML service unavailable"
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		status = http.StatusGatewayTimeout
		message = "ML service timed out"
	}

	writeJSON(w, status, model.RelayError{
		Success: false,
		Message: message,
		Error:   "Could not get a response from the generation service",
	})
}

func (h *MLHandler) publishGenerated(r *http.Request, payload map[string]any) {
	if h.bus == nil {
		return
	}
	userID, ip := requestActor(r)
	payload["client_ip"] = ip
	h.bus.Publish(event.Event{Type: event.TypeHouseGenerated, ActorID: userID, Payload: payload})
}
