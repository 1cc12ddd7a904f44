package assets

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// writeTree arma una librería de prueba bajo un directorio temporal.
func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestIndexScansSupportedFormatsOnly(t *testing.T) {
	root := writeTree(t,
		"food/apple.blend",
		"food/readme.txt",
		"food/apple.png",
		"vehicles/car.fbx",
		"misc/rock.stl",
	)

	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}
}

func TestIndexFailsOnUnreadableRoot(t *testing.T) {
	if _, err := NewIndex(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatalf("expected error for missing asset root")
	}
}

func TestResolveNoOverlapReturnsEmpty(t *testing.T) {
	root := writeTree(t, "food/apple.blend", "vehicles/car.fbx")
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := idx.Resolve("purple elephant dancing"); len(got) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(got))
	}
}

func TestResolveMatchesAndOrders(t *testing.T) {
	root := writeTree(t,
		"food/apple.blend",
		"food/apple_pie.blend",
		"vehicles/car.fbx",
	)
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := idx.Resolve("add an apple")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// Mismo score: gana el keyword set más chico (match más específico).
	if !strings.HasSuffix(got[0].Path, filepath.Join("food", "apple.blend")) {
		t.Fatalf("expected apple.blend first, got %s", got[0].Path)
	}
	if !strings.HasSuffix(got[1].Path, filepath.Join("food", "apple_pie.blend")) {
		t.Fatalf("expected apple_pie.blend second, got %s", got[1].Path)
	}
}

func TestResolveLexicalTieBreak(t *testing.T) {
	root := writeTree(t,
		"food/banana.blend",
		"fruit/banana.obj",
	)
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := idx.Resolve("banana")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Path >= got[1].Path {
		t.Fatalf("expected lexical path order, got %s before %s", got[0].Path, got[1].Path)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	root := writeTree(t,
		"food/apple.blend",
		"food/apple_pie.blend",
		"food/green_apple_01.glb",
	)
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := idx.Resolve("green apple")
	second := idx.Resolve("green apple")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
	if len(first) == 0 || !strings.Contains(first[0].Path, "green_apple") {
		t.Fatalf("expected green_apple first, got %+v", first)
	}
}

func TestKeywordsDropVariantSuffixes(t *testing.T) {
	root := writeTree(t, "food/apple_01_4k.blend")
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := idx.Resolve("apple")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	for _, kw := range got[0].Keywords {
		if kw == "01" || kw == "4k" {
			t.Fatalf("expected variant suffixes dropped, got keywords %v", got[0].Keywords)
		}
	}
}

func TestRebuildPicksUpNewFiles(t *testing.T) {
	root := writeTree(t, "food/apple.blend")
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Resolve("lamp")) != 0 {
		t.Fatalf("expected no lamp before rebuild")
	}

	path := filepath.Join(root, "props", "lamp.gltf")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := idx.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got := idx.Resolve("lamp")
	if len(got) != 1 || got[0].Category != "props" {
		t.Fatalf("expected lamp under props after rebuild, got %+v", got)
	}
}

func TestImportSnippetPerFormat(t *testing.T) {
	root := writeTree(t, "food/apple.blend", "vehicles/car.fbx")
	idx, err := NewIndex(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	apple := idx.Resolve("apple")[0]
	snippet := ImportSnippet(apple)
	if !strings.Contains(snippet, "import bpy") || !strings.Contains(snippet, "scene_action") {
		t.Fatalf("expected host wrapper in snippet, got:\n%s", snippet)
	}
	if !strings.Contains(snippet, "bpy.data.libraries.load") {
		t.Fatalf("expected .blend import call, got:\n%s", snippet)
	}

	car := idx.Resolve("car")[0]
	if !strings.Contains(ImportSnippet(car), "bpy.ops.import_scene.fbx") {
		t.Fatalf("expected fbx import call")
	}
}
