package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/pipeline"
	"github.com/ppiankov/chorale/internal/signature"
	"github.com/rs/cors"
)

// GroupsFile is the group index written by the index command
const GroupsFile = "groups.json"

// Server exposes the records of an output directory as a read-only JSON API
type Server struct {
	root    string
	router  *mux.Router
	handler http.Handler
}

// PieceSummary is one entry of the piece listing
type PieceSummary struct {
	PieceID     string  `json:"piece_id"`
	Title       string  `json:"title,omitempty"`
	TonalCenter string  `json:"tonal_center,omitempty"`
	PickupBeats float64 `json:"pickup_beats"`
	Phrases     int     `json:"phrases"`
	Cadences    int     `json:"cadences"`
}

// New creates a server over outputDir. An empty origin list allows any origin.
func New(outputDir string, allowedOrigins []string) *Server {
	s := &Server{root: outputDir}

	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pieces", s.handlePieces).Methods(http.MethodGet)
	api.HandleFunc("/pieces/{piece}", s.handlePiece).Methods(http.MethodGet)
	api.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}", s.handleRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}/score.{format:yaml|json|mid}", s.handleExcerptFile).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleGroups).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	s.router = router

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(router)

	return s
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) pieces(w http.ResponseWriter) ([]*model.PieceRecords, bool) {
	pieces, err := pipeline.CollectRecords(s.root)
	if err != nil {
		logger.Error("load records: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return nil, false
	}
	return pieces, true
}

func (s *Server) handlePieces(w http.ResponseWriter, r *http.Request) {
	pieces, ok := s.pieces(w)
	if !ok {
		return
	}
	list := make([]PieceSummary, 0, len(pieces))
	for _, p := range pieces {
		summary := PieceSummary{
			PieceID:     p.PieceID,
			Title:       p.Title,
			TonalCenter: p.TonalCenter,
			PickupBeats: p.PickupBeats,
		}
		for _, rec := range p.Records {
			switch rec.Kind {
			case model.ExcerptPhrase:
				summary.Phrases++
			case model.ExcerptCadence:
				summary.Cadences++
			}
		}
		list = append(list, summary)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePiece(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["piece"]
	pieces, ok := s.pieces(w)
	if !ok {
		return
	}
	for _, p := range pieces {
		if p.PieceID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "piece not found: "+id)
}

// handleRecords lists records, optionally filtered by ?piece=, ?kind= and ?cadence=
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	pieces, ok := s.pieces(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	piece, kind, cadenceType := q.Get("piece"), q.Get("kind"), q.Get("cadence")

	records := make([]model.ExcerptRecord, 0)
	for _, p := range pieces {
		if piece != "" && p.PieceID != piece {
			continue
		}
		for _, rec := range p.Records {
			if kind != "" && string(rec.Kind) != kind {
				continue
			}
			if cadenceType != "" && (rec.Cadence == nil || string(rec.Cadence.Type) != cadenceType) {
				continue
			}
			records = append(records, rec)
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) findRecord(w http.ResponseWriter, id string) (*model.ExcerptRecord, bool) {
	pieces, ok := s.pieces(w)
	if !ok {
		return nil, false
	}
	for _, p := range pieces {
		for i := range p.Records {
			if p.Records[i].ID == id {
				return &p.Records[i], true
			}
		}
	}
	writeError(w, http.StatusNotFound, "record not found: "+id)
	return nil, false
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.findRecord(w, mux.Vars(r)["id"]); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleExcerptFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, ok := s.findRecord(w, vars["id"])
	if !ok {
		return
	}

	path := filepath.Join(s.root, rec.PieceID, rec.ID+"."+vars["format"])
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "excerpt not rendered in format "+vars["format"])
		return
	}
	switch vars["format"] {
	case "mid":
		w.Header().Set("Content-Type", "audio/midi")
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
	}
	http.ServeFile(w, r, path)
}

// handleGroups serves groups.json when the index command wrote one, else groups the current records
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if data, err := os.ReadFile(filepath.Join(s.root, GroupsFile)); err == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}

	pieces, ok := s.pieces(w)
	if !ok {
		return
	}
	var records []model.ExcerptRecord
	for _, p := range pieces {
		records = append(records, p.Records...)
	}
	writeJSON(w, http.StatusOK, signature.GroupPhrases(records))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
