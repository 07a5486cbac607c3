package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/document"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/testutil"
)

var discard = slog.New(slog.DiscardHandler)

func TestNewServiceAppliesLayers(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Layers = []LayerConfig{
		{ID: "roi", Config: layers.Config{
			Name:     layers.Ptr("Regions"),
			RuleSpec: &layers.RuleSpec{Kinds: []models.Kind{models.KindPolygon}},
		}},
		{ID: layers.DefaultLayerID, Config: layers.Config{Locked: layers.Ptr(true)}},
	}

	svc, src, err := newService(cfg, discard)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	if src != nil {
		t.Error("no document configured, seed should be nil")
	}

	var sawROI bool
	for _, l := range svc.Layers() {
		if l.ID == "roi" && l.Name == "Regions" {
			sawROI = true
		}
		if l.ID == layers.DefaultLayerID && !l.Locked {
			t.Error("default layer should be locked")
		}
	}
	if !sawROI {
		t.Error("roi layer not created")
	}
	if _, err := svc.Create(testutil.Rect("r", 0, 0, 1, 1)); err == nil {
		t.Error("rectangle lands on the locked default layer and should be refused")
	}
}

func TestNewServiceSeedsDocument(t *testing.T) {
	doc := document.New([]models.Annotation{testutil.Rect("a", 0, 0, 2, 2)}, nil)
	dir, name := testutil.TestDocument(t, doc)

	cfg := NewDefaultConfig()
	cfg.Document.Path = filepath.Join(dir, name)

	svc, src, err := newService(cfg, discard)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	if src == nil || src.sum == "" {
		t.Fatal("seed should carry the document checksum")
	}
	if got := svc.List(annotationservice.ListFilter{}); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("annotations = %+v", got)
	}
	if svc.HistoryState().CanUndo {
		t.Error("seeding should not be undoable")
	}
}

func TestNewServiceMissingDocument(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Document.Path = filepath.Join(t.TempDir(), "missing.json")
	if _, _, err := newService(cfg, discard); err == nil {
		t.Fatal("expected error for missing seed document")
	}
}

func TestWatchDocumentReimports(t *testing.T) {
	dir, name := testutil.TestDocument(t, document.New([]models.Annotation{testutil.Rect("a", 0, 0, 2, 2)}, nil))
	cfg := NewDefaultConfig()
	cfg.Document.Path = filepath.Join(dir, name)

	svc, src, err := newService(cfg, discard)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchDocument(ctx, svc, src, discard) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	data, err := document.Marshal(document.New([]models.Annotation{
		testutil.Rect("b", 0, 0, 1, 1),
		testutil.Rect("c", 5, 5, 1, 1),
	}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Document.Path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(svc.List(annotationservice.ListFilter{})) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("document not re-imported, annotations = %+v", svc.List(annotationservice.ListFilter{}))
}
