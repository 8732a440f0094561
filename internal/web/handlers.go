// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docredact/internal/ai"
	"docredact/internal/config"
	"docredact/internal/core"
	"docredact/internal/format"
	"docredact/internal/paths"
	"docredact/internal/resilience"
	"docredact/internal/storage"
)

const (
	maxJSONBody       = 1 << 20
	defaultQueryLimit = 10
	maxQueryLimit     = 1000
	aiProbePrompt     = "Reply with the single word OK."
)

// fileRequest is the body shared by the path based endpoints
type fileRequest struct {
	FilePaths []string `json:"file_paths"`
	FilePath  string   `json:"file_path"`
	Formats   []string `json:"formats"`
	Format    string   `json:"format"`
	Limit     int      `json:"limit"`
}

// paths lists the requested paths in request order. Empty entries are
// dropped; repeats are kept so every requested file gets its own outcome.
func (req fileRequest) paths() []string {
	out := make([]string, 0, len(req.FilePaths)+1)
	for _, p := range req.FilePaths {
		if p != "" {
			out = append(out, p)
		}
	}
	if req.FilePath != "" {
		out = append(out, req.FilePath)
	}
	return out
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type uploadedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// handleUpload stores multipart files under the volume path, replacing
// documents of the same name
func (ws *WebServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	settings := ws.deps.Runtime.Snapshot()
	if err := settings.RequireVolume(); err != nil {
		ws.sendFailure(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ws.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ws.sendError(w, "Failed to parse form data: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		ws.sendError(w, "No files uploaded")
		return
	}

	uploaded := make([]uploadedFile, 0, len(headers))
	for _, fh := range headers {
		name := paths.BaseName(fh.Filename)
		if name == "" || name == "." || name == ".." || name == "/" {
			ws.sendError(w, fmt.Sprintf("Invalid file name %q", sanitizeUserInput(fh.Filename, 120)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			ws.sendErrorWithStatus(w, "Failed to read upload: "+err.Error(), http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ws.sendErrorWithStatus(w, "Failed to read upload: "+err.Error(), http.StatusInternalServerError)
			return
		}

		dest := paths.JoinBlobPath(settings.VolumePath, name)
		if err := ws.deps.Blobs.Put(r.Context(), dest, data, true); err != nil {
			ws.sendFailure(w, fmt.Errorf("failed to store %s: %w", name, err))
			return
		}
		uploaded = append(uploaded, uploadedFile{Name: name, Path: dest, Size: int64(len(data))})
	}

	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"uploaded_files": uploaded,
		"message":        fmt.Sprintf("Uploaded %d file(s) to %s", len(uploaded), settings.VolumePath),
	})
}

// handleWriteToTable extracts the text of the requested documents and
// replaces the active table with it
func (ws *WebServer) handleWriteToTable(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ws.sendError(w, err.Error())
		return
	}

	res, err := ws.deps.Ingest.Ingest(r.Context(), ws.deps.Runtime.Snapshot(), req.paths())
	if err != nil {
		ws.sendFailure(w, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"destination_table": res.Table,
		"processed_files":   res.Rows,
		"files":             res.Files,
		"message":           fmt.Sprintf("Wrote %d of %d file(s) to %s", res.Rows, len(res.Files), res.Table),
	})
}

// handleQueryTable returns stored text rows for the requested paths
func (ws *WebServer) handleQueryTable(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ws.sendError(w, err.Error())
		return
	}
	settings := ws.deps.Runtime.Snapshot()
	if err := settings.RequireTable(); err != nil {
		ws.sendFailure(w, err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	rows, err := ws.deps.Table.QueryByPaths(r.Context(), settings.TablePath, storage.TableKeys(req.paths()), limit)
	if err != nil {
		ws.sendFailure(w, fmt.Errorf("failed to query %s: %w", settings.TablePath, err))
		return
	}
	if rows == nil {
		rows = []storage.Row{}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"data":          rows,
		"table_name":    settings.TablePath,
		"total_results": len(rows),
	})
}

// handleRedact redacts the requested documents of any supported format
func (ws *WebServer) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ws.sendError(w, err.Error())
		return
	}
	var only []format.Tag
	if len(req.Formats) > 0 {
		enabled := core.ParseFormats(req.Formats)
		for _, tag := range core.AllFormats() {
			if enabled[tag] {
				only = append(only, tag)
			}
		}
		if len(only) == 0 {
			ws.sendError(w, fmt.Sprintf("No supported formats in %s", sanitizeUserInput(strings.Join(req.Formats, ", "), 120)))
			return
		}
	}
	ws.redact(w, r, req.paths(), only)
}

// handleRedactPDF is the PDF-only variant of handleRedact. Other formats are
// reported as skipped.
func (ws *WebServer) handleRedactPDF(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ws.sendError(w, err.Error())
		return
	}
	ws.redact(w, r, req.paths(), []format.Tag{format.PDF})
}

func (ws *WebServer) redact(w http.ResponseWriter, r *http.Request, files []string, only []format.Tag) {
	if len(files) == 0 {
		ws.sendError(w, "No files selected for redaction")
		return
	}

	outcomes, err := ws.deps.Orchestrator.Redact(r.Context(), ws.deps.Runtime.Snapshot(), files, core.RedactOptions{OnlyFormats: only})
	if err != nil {
		ws.sendFailure(w, err)
		return
	}

	redacted := 0
	for _, out := range outcomes {
		if out.Status == core.StatusRedacted {
			redacted++
		}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Processed %d file(s), %d redacted", len(outcomes), redacted),
		"redacted_files": outcomes,
	})
}

type exportResponse struct {
	APIResponse
	core.ExportResult
}

// handleExport consolidates stored text into a new export file
func (ws *WebServer) handleExport(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ws.sendError(w, err.Error())
		return
	}
	name := req.Format
	if name == "" {
		name = "markdown"
	}

	res, err := ws.deps.Exporter.Export(r.Context(), ws.deps.Runtime.Snapshot(), req.paths(), req.Limit, name)
	if err != nil {
		ws.sendFailure(w, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, exportResponse{
		APIResponse:  APIResponse{Success: true, Message: fmt.Sprintf("Exported %d file(s) to %s", res.SourceFiles, res.FilePath)},
		ExportResult: res,
	})
}

// handleDownload streams a stored document
func (ws *WebServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSpace(r.URL.Query().Get("file_path"))
	if p == "" {
		ws.sendError(w, "file_path is required")
		return
	}

	data, err := ws.deps.Blobs.Get(r.Context(), p)
	if err != nil {
		ws.sendFailure(w, err)
		return
	}
	if len(data) == 0 {
		ws.sendErrorWithStatus(w, "File is empty: "+sanitizeUserInput(p, 200), http.StatusNotFound)
		return
	}

	name := sanitizeUserInput(paths.BaseName(p), 200)
	w.Header().Set("Content-Type", format.MimeType(format.Detect(p), p))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		ws.logger.Warn("download interrupted", "path", p, "error", err)
	}
}

type configResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Config   config.Settings `json:"config"`
	Defaults config.Settings `json:"defaults"`
}

func (ws *WebServer) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	ws.writeJSON(w, http.StatusOK, configResponse{
		Success:  true,
		Config:   ws.deps.Runtime.Snapshot(),
		Defaults: ws.deps.Runtime.Defaults(),
	})
}

func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var upd config.SettingsUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		ws.sendError(w, err.Error())
		return
	}
	current, err := ws.deps.Runtime.Update(upd)
	if err != nil {
		ws.sendFailure(w, err)
		return
	}
	ws.writeJSON(w, http.StatusOK, configResponse{
		Success:  true,
		Message:  "Configuration updated",
		Config:   current,
		Defaults: ws.deps.Runtime.Defaults(),
	})
}

func (ws *WebServer) handleResetConfig(w http.ResponseWriter, _ *http.Request) {
	ws.writeJSON(w, http.StatusOK, configResponse{
		Success:  true,
		Message:  "Configuration reset to defaults",
		Config:   ws.deps.Runtime.Reset(),
		Defaults: ws.deps.Runtime.Defaults(),
	})
}

func (ws *WebServer) handleFormats(w http.ResponseWriter, _ *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"redaction_formats": ws.deps.Formats,
		"export_formats":    ws.deps.Exporter.Formats(),
	})
}

// handleTestAI sends a tiny prompt to the model to check it answers
func (ws *WebServer) handleTestAI(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ws.deps.AIProbeTimeout)
	defer cancel()

	answer, err := ws.deps.Completion.Complete(ctx, aiProbePrompt)
	if err != nil {
		ws.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success":    false,
			"message":    "AI endpoint is not reachable",
			"error":      err.Error(),
			"error_type": aiErrorType(err),
		})
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "AI endpoint answered",
		"test_result": strings.TrimSpace(answer),
	})
}

func aiErrorType(err error) string {
	var open *resilience.CircuitBreakerError
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		return "NotConfigured"
	case errors.As(err, &open):
		return "CircuitOpen"
	default:
		return resilience.ClassifyError(err).Type.String()
	}
}

// FormatsFor describes the redaction formats for tags
func FormatsFor(tags []format.Tag) []FormatInfo {
	out := make([]FormatInfo, 0, len(tags))
	for _, tag := range tags {
		out = append(out, FormatInfo{Format: string(tag), Extensions: format.ExtensionsFor(tag)})
	}
	return out
}
