package domain

// AssetEntry es un archivo de la librería de modelos 3D. Se construye al
// escanear el árbol de assets y es de solo lectura hasta el próximo rescan.
// Invariante: Keywords nunca está vacío (fallback: el nombre base del archivo).
type AssetEntry struct {
	Category string   `json:"category"`
	Path     string   `json:"path"`
	Keywords []string `json:"keywords"`
}
