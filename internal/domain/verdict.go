package domain

import "strings"

// Violation es una regla del gate de seguridad que el código infringió.
type Violation struct {
	Rule  string `json:"rule"`
	Match string `json:"match"`
}

// SafetyVerdict es el resultado de evaluar un texto de código contra el gate.
// Es efímero: solo sobrevive en el status/error_msg del Message resultante.
type SafetyVerdict struct {
	Code       string      `json:"-"`
	Approved   bool        `json:"approved"`
	Violations []Violation `json:"violations,omitempty"`
}

// Reason arma un texto legible con todas las reglas violadas.
func (v SafetyVerdict) Reason() string {
	if v.Approved || len(v.Violations) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.Violations))
	for _, viol := range v.Violations {
		parts = append(parts, viol.Rule+" ("+viol.Match+")")
	}
	return "code rejected by safety gate: " + strings.Join(parts, ", ")
}

// ExecutionResult es el resultado de una operación en el proceso host.
// TimedOut distingue "host no responde" de "el código lanzó un error".
type ExecutionResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}
