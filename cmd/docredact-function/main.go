// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Command docredact-function serves the HTTP API as a Cloud Function and
// ingests documents uploaded to the storage bucket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"docredact/internal/app"
	"docredact/internal/config"
	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
	"docredact/internal/web"
)

var (
	pipeline *app.App
	handler  http.Handler
	once     sync.Once
	initErr  error
)

// storageObject is the payload of a storage object finalized event
type storageObject struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("DocRedactAPI", serveAPI)
	functions.CloudEvent("IngestUpload", ingestUpload)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() error {
	once.Do(func() {
		config.LoadDotEnv()
		cfg, err := config.LoadConfig(os.Getenv("DOCREDACT_CONFIG"))
		if err != nil {
			initErr = err
			return
		}
		observer := observability.NewStandardObserverWithLogger(observability.ParseLevel(cfg.Logging.Level), slog.Default())
		pipeline, initErr = app.Build(context.Background(), cfg, observer)
		if initErr != nil {
			return
		}
		handler = web.NewWebServer(cfg.Server.Addr, pipeline.WebDependencies()).Handler()
	})
	return initErr
}

func serveAPI(w http.ResponseWriter, r *http.Request) {
	if err := setup(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	handler.ServeHTTP(w, r)
}

// ingestUpload extracts the text of a newly uploaded document into the
// active table
func ingestUpload(ctx context.Context, e cloudevents.Event) error {
	if err := setup(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var obj storageObject
	if err := json.Unmarshal(e.Data(), &obj); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	settings := pipeline.Runtime.Snapshot()
	path, ok := uploadPath(obj, pipeline.Config.Storage.Bucket, settings)
	if !ok {
		slog.Info("Ignoring object", "bucket", obj.Bucket, "name", obj.Name)
		return nil
	}

	res, err := pipeline.Ingest.Ingest(ctx, settings, []string{path})
	if err != nil {
		slog.Error("Ingest failed", "path", path, "error", err)
		return err
	}
	slog.Info("Ingested upload", "path", path, "table", res.Table, "status", res.Files[0].Status)
	return nil
}

// uploadPath maps a storage object onto the blob path the pipeline uses.
// Only supported documents below the volume path are ingested; redacted
// copies and exports are ignored so they never replace the table.
func uploadPath(obj storageObject, defaultBucket string, settings config.Settings) (string, bool) {
	if obj.Name == "" || strings.HasSuffix(obj.Name, "/") {
		return "", false
	}
	path := "/" + obj.Name
	if obj.Bucket != "" && obj.Bucket != defaultBucket {
		path = "gs://" + obj.Bucket + "/" + obj.Name
	}

	volume := strings.TrimLeft(settings.VolumePath, "/")
	if volume != "" && !strings.HasPrefix(obj.Name, volume) {
		return "", false
	}
	if format.Detect(path) == format.Unknown {
		return "", false
	}
	base := path[strings.LastIndex(path, "/")+1:]
	if strings.HasPrefix(base, redactors.RedactedPrefix) || strings.Contains(base, redactors.RedactedSuffix+".") {
		return "", false
	}
	return path, true
}
