package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"FreightDocAI/app/documents"
	"FreightDocAI/app/index"
	"FreightDocAI/app/models"
)

// fakeModel derives embeddings from keyword hits so tests control
// similarity without a live capability.
type fakeModel struct {
	embedFn    func(input string) ([]float32, error)
	generateFn func(messages []models.Message) (string, error)
}

func (f *fakeModel) EmbedText(_ context.Context, input string) ([]float32, error) {
	return f.embedFn(input)
}

func (f *fakeModel) Generate(_ context.Context, messages []models.Message) (string, error) {
	if f.generateFn == nil {
		return "", errors.New("generate should not have been called")
	}
	return f.generateFn(messages)
}

func keywordEmbed(input string) ([]float32, error) {
	vec := []float32{0, 0}
	if strings.Contains(strings.ToLower(input), "chicago") {
		vec[0] = 1
	}
	if strings.Contains(strings.ToLower(input), "dallas") {
		vec[1] = 1
	}
	if vec[0] == 0 && vec[1] == 0 {
		vec = []float32{0.1, 0.1}
	}
	return vec, nil
}

func newTestEngine(t *testing.T, model models.Interface) *Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := index.NewSQLiteStore(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(model, store, documents.NewLoader(dir), documents.NewChunker(0, 0), Options{})
}

func TestAskEmptyIndex(t *testing.T) {
	model := &fakeModel{embedFn: keywordEmbed}
	e := newTestEngine(t, model)

	ans, err := e.Ask(context.Background(), "Where was the shipment picked up?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != noDocumentsMessage {
		t.Fatalf("unexpected answer: %q", ans.Answer)
	}
	if ans.Confidence != 0.0 || len(ans.Sources) != 0 {
		t.Fatalf("unexpected outcome: %+v", ans)
	}
}

func TestIngestThenAsk(t *testing.T) {
	model := &fakeModel{
		embedFn: keywordEmbed,
		generateFn: func(messages []models.Message) (string, error) {
			if len(messages) != 2 {
				t.Errorf("unexpected messages: %#v", messages)
			}
			if !strings.Contains(messages[1].Content, "Chicago warehouse") {
				t.Errorf("context block missing retrieved chunk: %q", messages[1].Content)
			}
			return "The shipment was picked up in Chicago.", nil
		},
	}
	e := newTestEngine(t, model)

	msg, err := e.Ingest(context.Background(), []byte("Pickup at the Chicago warehouse on 2024-03-01."), "bol.txt")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if msg != "Processed 1 chunks from bol.txt" {
		t.Fatalf("unexpected message: %q", msg)
	}

	ans, err := e.Ask(context.Background(), "Where is the pickup? chicago")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != "The shipment was picked up in Chicago." {
		t.Fatalf("unexpected answer: %q", ans.Answer)
	}
	if ans.Confidence < DefaultThreshold {
		t.Fatalf("confidence below threshold: %f", ans.Confidence)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "bol.txt" {
		t.Fatalf("unexpected sources: %#v", ans.Sources)
	}
}

func TestAskLowConfidenceRefusal(t *testing.T) {
	model := &fakeModel{
		embedFn: func(input string) ([]float32, error) {
			if strings.Contains(input, "Chicago") {
				return []float32{1, 0}, nil
			}
			// nearly orthogonal to the indexed chunk
			return []float32{1, 10}, nil
		},
	}
	e := newTestEngine(t, model)

	if _, err := e.Ingest(context.Background(), []byte("Pickup at the Chicago warehouse."), "bol.txt"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	ans, err := e.Ask(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != lowConfidenceMessage {
		t.Fatalf("unexpected answer: %q", ans.Answer)
	}
	if ans.Confidence <= 0 || ans.Confidence >= DefaultThreshold {
		t.Fatalf("unexpected confidence: %f", ans.Confidence)
	}
	if ans.Confidence != 0.1 {
		t.Fatalf("confidence not rounded to 2 decimals: %v", ans.Confidence)
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("refusal must carry no sources: %#v", ans.Sources)
	}
}

func TestReingestReplacesPriorCorpus(t *testing.T) {
	model := &fakeModel{
		embedFn: keywordEmbed,
		generateFn: func(messages []models.Message) (string, error) {
			return "answer", nil
		},
	}
	e := newTestEngine(t, model)

	if _, err := e.Ingest(context.Background(), []byte("Pickup at the Chicago warehouse."), "doc1.txt"); err != nil {
		t.Fatalf("ingest doc1: %v", err)
	}
	if _, err := e.Ingest(context.Background(), []byte("Delivery to the Dallas terminal."), "doc2.txt"); err != nil {
		t.Fatalf("ingest doc2: %v", err)
	}

	// answerable only from doc1, which must be gone now
	ans, err := e.Ask(context.Background(), "Tell me about chicago")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != lowConfidenceMessage {
		t.Fatalf("first corpus still queryable: %+v", ans)
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("unexpected sources: %#v", ans.Sources)
	}
}

func TestIngestEmbedFailureLeavesIndexIntact(t *testing.T) {
	failing := false
	model := &fakeModel{
		embedFn: func(input string) ([]float32, error) {
			if failing {
				return nil, errors.New("capability down")
			}
			return keywordEmbed(input)
		},
		generateFn: func(messages []models.Message) (string, error) {
			return "from doc1", nil
		},
	}
	e := newTestEngine(t, model)

	if _, err := e.Ingest(context.Background(), []byte("Pickup at the Chicago warehouse."), "doc1.txt"); err != nil {
		t.Fatalf("ingest doc1: %v", err)
	}

	failing = true
	if _, err := e.Ingest(context.Background(), []byte("Delivery to the Dallas terminal."), "doc2.txt"); err == nil {
		t.Fatal("expected ingest to fail")
	}
	failing = false

	ans, err := e.Ask(context.Background(), "Tell me about chicago")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != "from doc1" || len(ans.Sources) != 1 || ans.Sources[0] != "doc1.txt" {
		t.Fatalf("prior corpus lost after failed ingest: %+v", ans)
	}
}

func TestConcurrentAskDuringIngest(t *testing.T) {
	model := &fakeModel{
		embedFn: keywordEmbed,
		generateFn: func(messages []models.Message) (string, error) {
			return "answer", nil
		},
	}
	e := newTestEngine(t, model)

	if _, err := e.Ingest(context.Background(), []byte("Pickup at the Chicago warehouse."), "doc1.txt"); err != nil {
		t.Fatalf("ingest doc1: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Ingest(context.Background(), []byte("Pickup in chicago, delivery in dallas."), "doc2.txt"); err != nil {
			t.Errorf("ingest doc2: %v", err)
		}
	}()

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := e.Ask(context.Background(), "Where is the pickup? chicago")
			if err != nil {
				t.Errorf("ask: %v", err)
				return
			}
			// every answer must be grounded in exactly one corpus
			for _, src := range ans.Sources {
				if src != "doc1.txt" && src != "doc2.txt" {
					t.Errorf("unexpected source: %q", src)
				}
			}
			if len(ans.Sources) > 1 {
				t.Errorf("mixed corpus observed: %#v", ans.Sources)
			}
		}()
	}
	wg.Wait()
}

func TestIngestNoText(t *testing.T) {
	model := &fakeModel{embedFn: keywordEmbed}
	e := newTestEngine(t, model)
	if _, err := e.Ingest(context.Background(), []byte("   "), "blank.txt"); err == nil {
		t.Fatal("expected error for empty document")
	}
}
