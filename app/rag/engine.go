package rag

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"FreightDocAI/app/documents"
	"FreightDocAI/app/index"
	"FreightDocAI/app/models"
)

const (
	DefaultThreshold   = 0.25
	DefaultAskTopK     = 3
	DefaultExtractTopK = 10

	noDocumentsMessage   = "No relevant documents found."
	lowConfidenceMessage = "I cannot find the answer to this question in the uploaded documents (Low Confidence)."
)

// Answer is the outcome of one question: the synthesized (or refusal)
// text, the top retrieval score rounded for reporting, and the deduped
// source filenames the answer was grounded on.
type Answer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

type Options struct {
	Threshold   float64
	AskTopK     int
	ExtractTopK int
}

// Engine runs the document pipeline over a single active corpus.
// Ingest is the only writer; Ask and Extract are readers and may run
// concurrently with each other. A reader always observes either the
// pre-rebuild or the post-rebuild corpus in full, never a mix.
type Engine struct {
	mu sync.RWMutex

	model   models.Interface
	store   index.Store
	loader  *documents.Loader
	chunker *documents.Chunker

	threshold   float64
	askTopK     int
	extractTopK int
}

func NewEngine(model models.Interface, store index.Store, loader *documents.Loader, chunker *documents.Chunker, opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.AskTopK <= 0 {
		opts.AskTopK = DefaultAskTopK
	}
	if opts.ExtractTopK <= 0 {
		opts.ExtractTopK = DefaultExtractTopK
	}
	return &Engine{
		model:       model,
		store:       store,
		loader:      loader,
		chunker:     chunker,
		threshold:   opts.Threshold,
		askTopK:     opts.AskTopK,
		extractTopK: opts.ExtractTopK,
	}
}

// Ingest parses and chunks an uploaded document, embeds every chunk and
// atomically replaces the index corpus with the result. Any failure
// before the swap leaves the previous corpus queryable.
func (e *Engine) Ingest(ctx context.Context, data []byte, filename string) (string, error) {
	segments, err := e.loader.Load(data, filename)
	if err != nil {
		return "", err
	}
	chunks := e.chunker.Chunk(segments)
	if len(chunks) == 0 {
		return "", fmt.Errorf("no text extracted from %s", filename)
	}

	docs := make([]index.Doc, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := e.model.EmbedText(ctx, ch.Text)
		if err != nil {
			return "", fmt.Errorf("embed chunk %d of %s: %w", ch.Seq, filename, err)
		}
		docs = append(docs, index.Doc{
			ID:     uuid.New().String(),
			Text:   ch.Text,
			Source: ch.Source,
			Seq:    ch.Seq,
			Vector: vec,
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Replace(ctx, docs); err != nil {
		return "", fmt.Errorf("rebuild index: %w", err)
	}

	log.Printf("✅ Indexed %d chunks from %s", len(docs), filename)
	return fmt.Sprintf("Processed %d chunks from %s", len(docs), filename), nil
}

// Ask retrieves the best-matching chunks for the question and either
// refuses (empty index, or top score under the guardrail threshold) or
// synthesizes an answer restricted to the retrieved context.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vec, err := e.model.EmbedText(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	results, err := e.store.Search(ctx, vec, e.askTopK)
	if err != nil {
		return Answer{}, fmt.Errorf("search index: %w", err)
	}

	if len(results) == 0 {
		return Answer{Answer: noDocumentsMessage, Confidence: 0.0, Sources: []string{}}, nil
	}

	// the threshold comparison uses the full-precision score; rounding
	// is for reporting only
	topScore := results[0].Score
	if topScore < e.threshold {
		log.Printf("🙅 Guardrail rejected question (score %.4f < %.2f)", topScore, e.threshold)
		return Answer{Answer: lowConfidenceMessage, Confidence: round2(topScore), Sources: []string{}}, nil
	}

	contextBlock := joinTexts(results, "\n\n")
	answer, err := e.model.Generate(ctx, []models.Message{
		{Role: "system", Content: models.AnswerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(models.AnswerUserTemplate, contextBlock, question)},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}

	return Answer{
		Answer:     answer,
		Confidence: round2(topScore),
		Sources:    dedupSources(results),
	}, nil
}

func joinTexts(results []index.Result, sep string) string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Doc.Text)
	}
	return strings.Join(texts, sep)
}

func dedupSources(results []index.Result) []string {
	seen := make(map[string]struct{}, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Doc.Source]; ok {
			continue
		}
		seen[r.Doc.Source] = struct{}{}
		sources = append(sources, r.Doc.Source)
	}
	return sources
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
