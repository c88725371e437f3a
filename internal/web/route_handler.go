package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"cronq/internal/cronq"
	"cronq/internal/state"
	"cronq/internal/store"
)

const PageSize = 15

// JobController is the scheduler surface the handlers need: immediate
// enqueue of a named job and replay of an existing instance.
type JobController interface {
	QueueJobNow(ctx context.Context, name string) (string, error)
	RestartInstance(ctx context.Context, instanceID string) error
}

type HttpRouteHandler struct {
	controller    JobController
	instanceStore store.InstanceStore
	port          uint
}

func NewRouteHandler(controller JobController, instanceStore store.InstanceStore, port uint) *HttpRouteHandler {
	return &HttpRouteHandler{
		controller:    controller,
		instanceStore: instanceStore,
		port:          port,
	}
}

// Router builds the API mux. Kept separate from Serve so tests can drive
// the handlers through httptest.
func (handler *HttpRouteHandler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/queue", handler.handleQueueJob)
	mux.HandleFunc("/api/instances/restart", handler.handleRestartInstance)
	mux.HandleFunc("/api/instances", handler.handleListInstances)
	return mux
}

func (handler *HttpRouteHandler) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", handler.port),
		Handler: handler.Router(),
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Printf("Web: shutdown error: %v", err)
		}
	}()

	log.Printf("Web: listening on %s", server.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (handler *HttpRouteHandler) handleQueueJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		http.Error(w, "job name is required", http.StatusBadRequest)
		return
	}

	instanceID, err := handler.controller.QueueJobNow(r.Context(), body.Name)
	if errors.Is(err, store.ErrJobNotFound) {
		http.Error(w, fmt.Sprintf("job %s not found", body.Name), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Web: failed to queue job %s: %v", body.Name, err)
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"instance_id": instanceID})
}

func (handler *HttpRouteHandler) handleRestartInstance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		InstanceID string `json:"instance_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.InstanceID) == "" {
		http.Error(w, "instance_id is required", http.StatusBadRequest)
		return
	}

	err := handler.controller.RestartInstance(r.Context(), body.InstanceID)
	switch {
	case errors.Is(err, store.ErrInstanceNotFound):
		http.Error(w, fmt.Sprintf("instance %s not found", body.InstanceID), http.StatusNotFound)
	case errors.Is(err, cronq.ErrNotRestartable):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		log.Printf("Web: failed to restart instance %s: %v", body.InstanceID, err)
		http.Error(w, "failed to restart instance", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"instance_id": body.InstanceID})
	}
}

func (handler *HttpRouteHandler) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	status := state.InstanceStatus(statusParam)
	if statusParam != "" && !status.IsValid() {
		http.Error(w, fmt.Sprintf("unknown status %q", statusParam), http.StatusBadRequest)
		return
	}

	result, err := handler.instanceStore.ListPage(r.Context(), getPageNumber(r), PageSize, status)
	if err != nil {
		log.Printf("Web: failed to list instances: %v", err)
		http.Error(w, "failed to list instances", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Web: failed to encode response: %v", err)
	}
}

func getPageNumber(r *http.Request) int {
	page := r.URL.Query().Get("page")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		pageNumber = 1
	}
	return int(pageNumber)
}
