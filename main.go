package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"FreightDocAI/app/configs"
	"FreightDocAI/app/documents"
	"FreightDocAI/app/index"
	"FreightDocAI/app/models"
	"FreightDocAI/app/rag"
)

const maxUploadBytes = 32 << 20

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := configs.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ Error loading config: %v", err)
	}

	model := models.NewLLMClient(models.ClientConfig{
		BaseURL:         cfg.Model.BaseURL,
		Model:           cfg.Model.Model,
		EmbeddingsModel: cfg.Model.EmbeddingsModel,
		Timeout:         time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		MaxRetries:      cfg.Model.MaxRetries,
	})

	store, err := index.NewStore(index.Config{
		Backend:    cfg.Index.Backend,
		Path:       cfg.Index.Path,
		QdrantHost: cfg.Index.QdrantHost,
		QdrantPort: cfg.Index.QdrantPort,
		Collection: cfg.Index.Collection,
	})
	if err != nil {
		log.Fatalf("❌ Error opening index: %v", err)
	}
	defer store.Close()

	engine := rag.NewEngine(
		model,
		store,
		documents.NewLoader(cfg.Index.DataDir),
		documents.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		rag.Options{
			Threshold:   cfg.Retrieval.Threshold,
			AskTopK:     cfg.Retrieval.AskTopK,
			ExtractTopK: cfg.Retrieval.ExtractTopK,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", uploadHandler(engine))
	mux.HandleFunc("POST /ask", askHandler(engine))
	mux.HandleFunc("POST /extract", extractHandler(engine))

	log.Printf("🚀 Listening on %s (index backend: %s)", cfg.Server.Addr, cfg.Index.Backend)
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
}

func uploadHandler(engine *rag.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}

		message, err := engine.Ingest(r.Context(), data, header.Filename)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, map[string]string{"message": message})
	}
}

func askHandler(engine *rag.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, errors.New("question is required"))
			return
		}

		answer, err := engine.Ask(r.Context(), req.Question)
		if err != nil {
			httpError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, answer)
	}
}

func extractHandler(engine *rag.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := engine.Extract(r.Context())
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, rag.ErrSchemaValidation) {
				status = http.StatusUnprocessableEntity
			}
			httpError(w, status, err)
			return
		}
		writeJSON(w, record)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Error encoding response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	log.Printf("⚠️ %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
