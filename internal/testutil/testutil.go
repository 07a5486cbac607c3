// Package testutil provides shared test helpers for wired services and
// document files.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/document"
	"github.com/starford/annota/internal/models"
)

// TestService returns a service whose generated ids are "id-1", "id-2", ...
func TestService(t *testing.T, opts ...annotationservice.Option) *annotationservice.Service {
	t.Helper()
	var n atomic.Int64
	gen := annotationservice.WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	})
	return annotationservice.New(append([]annotationservice.Option{gen}, opts...)...)
}

// Rect builds a rectangle annotation.
func Rect(id string, x, y, w, h float64) models.Annotation {
	return models.Annotation{ID: id, Shape: models.Rectangle{X: x, Y: y, Width: w, Height: h}}
}

// TestDocument writes doc to a file in a temporary directory and returns the
// directory and file name.
func TestDocument(t *testing.T, doc *document.Document) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	name = "annotations.json"
	data, err := document.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, name
}
