// Package assets indexa la librería local de modelos 3D y resuelve frases
// en lenguaje natural a archivos candidatos.
package assets

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"scene-bridge/internal/domain"
)

// Extensiones de modelo aceptadas en la librería.
var supportedExts = map[string]struct{}{
	".blend": {},
	".fbx":   {},
	".obj":   {},
	".gltf":  {},
	".glb":   {},
	".stl":   {},
}

// Palabras de relleno típicas de una orden ("add an apple") que no aportan
// señal para el matching.
var noiseWords = map[string]struct{}{
	"add":    {},
	"the":    {},
	"create": {},
	"make":   {},
	"place":  {},
	"import": {},
	"put":    {},
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// sizeSuffixRe cubre tokens de variante/resolución tipo "01", "4k", "8k".
var sizeSuffixRe = regexp.MustCompile(`^\d+k?$`)

// Index es el índice en memoria de la librería. Las lecturas son
// concurrentes; Rebuild re-escanea el árbol bajo lock exclusivo.
type Index struct {
	mu      sync.RWMutex
	root    string
	entries []domain.AssetEntry
	logger  *zap.Logger
}

// NewIndex escanea el árbol de assets una vez. Un root ilegible es una falla
// de arranque: se devuelve el error al caller para que decida si es fatal.
func NewIndex(root string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{root: root, logger: logger}
	if err := idx.Rebuild(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild re-escanea el directorio de assets bajo acceso exclusivo.
func (idx *Index) Rebuild() error {
	var entries []domain.AssetEntry

	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := supportedExts[ext]; !ok {
			return nil
		}
		entries = append(entries, buildEntry(idx.root, path))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan asset root %q: %w", idx.root, err)
	}

	// Orden léxico estable: los empates del resolver se rompen por path.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()

	idx.logger.Info("asset index built", zap.String("root", idx.root), zap.Int("entries", len(entries)))
	return nil
}

// buildEntry deriva la categoría (primer subdirectorio) y el set de keywords
// (tokens del nombre del archivo más la categoría, en minúsculas).
func buildEntry(root, path string) domain.AssetEntry {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	category := "root"
	if dir := filepath.Dir(rel); dir != "." {
		parts := strings.Split(dir, string(filepath.Separator))
		category = parts[0]
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	keywords := keywordSet(stem, category)
	if len(keywords) == 0 {
		// Fallback del invariante: el set nunca queda vacío.
		keywords = []string{strings.ToLower(stem)}
	}

	return domain.AssetEntry{
		Category: category,
		Path:     path,
		Keywords: keywords,
	}
}

// keywordSet tokeniza nombre y categoría, descartando sufijos de variante
// ("_01", "_4k") que no aportan al matching.
func keywordSet(stem, category string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, source := range []string{stem, category} {
		for _, tok := range tokenRe.FindAllString(strings.ToLower(source), -1) {
			if sizeSuffixRe.MatchString(tok) {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// scored acompaña a una entrada con su overlap de tokens.
type scored struct {
	entry domain.AssetEntry
	score int
}

// Resolve mapea una frase libre a entradas candidatas, mejor match primero.
// Score = cantidad de tokens de la frase presentes en el keyword set; cero
// overlap excluye la entrada. Empates: set de keywords más chico (match más
// específico) y después orden léxico del path. Determinista e idempotente
// mientras el índice no cambie.
func (idx *Index) Resolve(phrase string) []domain.AssetEntry {
	tokens := phraseTokens(phrase)
	if len(tokens) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []scored
	for _, entry := range idx.entries {
		kw := map[string]struct{}{}
		for _, k := range entry.Keywords {
			kw[k] = struct{}{}
		}
		score := 0
		for _, tok := range tokens {
			if _, ok := kw[tok]; ok {
				score++
			}
		}
		if score > 0 {
			results = append(results, scored{entry: entry, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if len(results[i].entry.Keywords) != len(results[j].entry.Keywords) {
			return len(results[i].entry.Keywords) < len(results[j].entry.Keywords)
		}
		return results[i].entry.Path < results[j].entry.Path
	})

	out := make([]domain.AssetEntry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out
}

// phraseTokens pasa la frase a tokens minúsculos, filtrando palabras de
// relleno y tokens de menos de tres caracteres.
func phraseTokens(phrase string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(phrase), -1) {
		if len(tok) < 3 {
			continue
		}
		if _, noise := noiseWords[tok]; noise {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Len devuelve la cantidad de entradas indexadas.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
