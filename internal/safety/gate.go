// Package safety implementa el gate estático que aprueba o rechaza código
// generado antes de ejecutarlo en el proceso host.
//
// Limitación documentada: es un filtro de patrones, no un sandbox. Atrapa
// generaciones inseguras accidentales o ingenuas; no detiene código ofuscado
// ni llamadas peligrosas construidas dinámicamente. Un despliegue de
// producción debería además ejecutar el código aprobado en un sandbox a
// nivel de proceso.
package safety

import (
	"regexp"
	"sort"

	"scene-bridge/internal/domain"
)

// rule es un patrón denylisteado con nombre legible para los reportes.
type rule struct {
	name string
	re   *regexp.Regexp
}

var denylist = []rule{
	{"process invocation", regexp.MustCompile(`(?i)os\.system|subprocess\.`)},
	{"filesystem removal", regexp.MustCompile(`(?i)os\.remove|os\.rmdir|shutil\.rmtree`)},
	{"network access", regexp.MustCompile(`(?i)urllib\.request|requests\.|socket\.|http\.`)},
	{"dynamic execution", regexp.MustCompile(`(?i)\beval\(|\bexec\(|__import__|\bcompile\(`)},
	{"raw file access", regexp.MustCompile(`(?i)\bopen\(|with\s+open|\bfile\(`)},
	{"reflection mutation", regexp.MustCompile(`(?i)\bsetattr\(|\bglobals\(`)},
	{"host session overwrite", regexp.MustCompile(`bpy\.ops\.wm\.open_mainfile|bpy\.ops\.wm\.read_homefile`)},
}

// allowedImports es la superficie de imports permitida: el API de escena del
// host más utilidades numéricas básicas.
var allowedImports = map[string]struct{}{
	"bpy":       {},
	"mathutils": {},
	"bmesh":     {},
	"math":      {},
	"random":    {},
	"datetime":  {},
}

// importRe matchea imports en posición de statement: inicio de línea o
// después de un ";". Un "import X" inline ("x = 1; import ctypes") cuenta
// igual que uno en su propia línea.
var importRe = regexp.MustCompile(`(?m)(?:^|;)[ \t]*(?:from|import)[ \t]+(\w+)`)

// Gate evalúa texto de código contra el denylist y el allowlist de imports.
// No tiene estado: es seguro compartirlo entre goroutines sin locks.
type Gate struct{}

func NewGate() Gate {
	return Gate{}
}

// Evaluate es determinista y puro: mismo código, mismo veredicto. Aprueba
// si y solo si ningún patrón del denylist matchea y todo import apunta al
// allowlist; código sin imports ni patrones se aprueba por defecto.
func (Gate) Evaluate(code string) domain.SafetyVerdict {
	verdict := domain.SafetyVerdict{Code: code}

	for _, r := range denylist {
		for _, match := range r.re.FindAllString(code, -1) {
			verdict.Violations = append(verdict.Violations, domain.Violation{
				Rule:  r.name,
				Match: match,
			})
		}
	}

	for _, target := range disallowedImports(code) {
		verdict.Violations = append(verdict.Violations, domain.Violation{
			Rule:  "disallowed import",
			Match: target,
		})
	}

	verdict.Approved = len(verdict.Violations) == 0
	return verdict
}

// disallowedImports lista, sin duplicados y en orden estable, los módulos
// importados que no están en el allowlist.
func disallowedImports(code string) []string {
	seen := map[string]struct{}{}
	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		target := m[1]
		if _, ok := allowedImports[target]; ok {
			continue
		}
		seen[target] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for target := range seen {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}
