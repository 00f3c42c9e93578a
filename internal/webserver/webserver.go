package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/mlsec-tools/deepdash/internal/deepdash"
	"github.com/mlsec-tools/deepdash/internal/deepdash/apis"
	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// WebServer holds the data needed for handling HTTP requests.
type WebServer struct {
	Dashboard *deepdash.Dashboard
	config    *WebserverConfig
	Logger    *logrus.Logger
}

// detectRequest is the body of the submission endpoint.
type detectRequest struct {
	FileURL string `json:"file_url"`
}

// NewWebServer initializes a new WebServer.
func NewWebServer(dashboard *deepdash.Dashboard, config *WebserverConfig, logger *logrus.Logger) *WebServer {
	return &WebServer{
		Dashboard: dashboard,
		config:    config,
		Logger:    logger,
	}
}

// StartWebServer starts the HTTP server.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	corsOptions := cors.Options{
		AllowedOrigins: ws.config.CorsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length", "Content-Disposition"},
	}
	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:    ws.config.ListenTo,
		Handler: handler,
	}

	go func() {
		ws.Logger.Infof("Server starting on %s", ws.config.ListenTo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.Logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/detect", ws.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/uploads", ws.handleListUploads).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{key:.+}", ws.handleDeleteUpload).Methods(http.MethodDelete)
	api.HandleFunc("/export.csv", ws.handleExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/stats", ws.handleGetStats).Methods(http.MethodGet)

	// Static single page
	r.PathPrefix("/").Handler(
		http.StripPrefix("/", http.FileServer(http.Dir(ws.config.StaticDir))))
	return r
}

// handleDetect handles the POST /api/detect endpoint. The success message
// carries the verdict and confidence; a remote failure surfaces the raw
// response body text unmodified.
func (ws *WebServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.Logger.Errorf("Invalid JSON payload: %v", err)
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.FileURL == "" {
		WriteErrorResponse(w, "file_url is required", http.StatusBadRequest)
		return
	}

	result, err := ws.Dashboard.Detect(ctx, req.FileURL)
	if err != nil {
		ws.Logger.WithError(err).WithField("file_url", req.FileURL).Error("Detection failed")
		var remoteErr *apis.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Err == nil {
			WriteErrorResponse(w, fmt.Sprintf("Detection failed: %s", remoteErr.Body), http.StatusBadGateway)
			return
		}
		WriteErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusBadGateway)
		return
	}

	message := fmt.Sprintf("Detected: %s (confidence: %v)", result.Verdict, result.Confidence)
	WriteSuccessResponse(w, message, result)
}

// handleListUploads handles the GET /api/uploads endpoint.
func (ws *WebServer) handleListUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := ws.Dashboard.ListUploads(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to list uploads")
		WriteErrorResponse(w, "Failed to retrieve uploads", http.StatusInternalServerError)
		return
	}

	response := models.UploadsResponse{Uploads: entries, Total: len(entries)}
	if len(entries) == 0 {
		WriteWarningResponse(w,
			fmt.Sprintf("No objects found under '%s' prefix.", ws.Dashboard.Config.Prefix),
			response)
		return
	}
	WriteSuccessResponse(w, "Uploads retrieved successfully", response)
}

// handleDeleteUpload handles the DELETE /api/uploads/{key} endpoint. A
// failed delete reports the key and the error text; it never takes the
// remaining sections down with it.
func (ws *WebServer) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["key"]
	if key == "" {
		WriteErrorResponse(w, "Key parameter is required", http.StatusBadRequest)
		return
	}

	entries, err := ws.Dashboard.DeleteUpload(ctx, key)
	if err != nil {
		ws.Logger.WithError(err).WithField("key", key).Error("Failed to delete upload")
		WriteErrorResponse(w, fmt.Sprintf("Failed to delete %s: %v", key, err), http.StatusInternalServerError)
		return
	}

	if entries == nil {
		WriteWarningResponse(w,
			fmt.Sprintf("Deleted %s. Please refresh the page to see updated changes.", key),
			models.DeleteResponse{Key: key})
		return
	}
	WriteSuccessResponse(w,
		fmt.Sprintf("Deleted %s", key),
		models.DeleteResponse{Key: key, Uploads: entries})
}

// handleExportCSV handles the GET /api/export.csv endpoint.
func (ws *WebServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, count, err := ws.Dashboard.ExportCSV(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to export detection data")
		WriteErrorResponse(w, fmt.Sprintf("Failed to export detection data: %v", err), http.StatusInternalServerError)
		return
	}
	if count == 0 {
		WriteWarningResponse(w, "No detection data found.", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", ws.Dashboard.Config.ExportFileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		ws.Logger.WithError(err).Error("Failed to write CSV response")
	}
}

// handleGetStats handles the GET /api/stats endpoint.
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := ws.Dashboard.Stats(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to retrieve stats")
		WriteErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Statistics retrieved successfully", stats)
}
