package llmprovider

import (
	"sync"

	"github.com/rs/zerolog"
)

// ValidationEngine manages validation rules and executes them
type ValidationEngine struct {
	rules []ValidationRule
	mu    sync.RWMutex
}

var (
	globalValidationEngine     *ValidationEngine
	globalValidationEngineOnce sync.Once
)

// GetValidationEngine returns the global validation engine (singleton)
func GetValidationEngine() *ValidationEngine {
	globalValidationEngineOnce.Do(func() {
		globalValidationEngine = NewValidationEngine(GetCapabilityRegistry())
	})
	return globalValidationEngine
}

// NewValidationEngine creates an engine with the built-in rules backed by registry.
func NewValidationEngine(registry *CapabilityRegistry) *ValidationEngine {
	ve := &ValidationEngine{
		rules: make([]ValidationRule, 0),
	}
	ve.AddRule(&ModelValidationRule{registry: registry})
	ve.AddRule(&ToolValidationRule{registry: registry})
	ve.AddRule(&OutputLimitRule{registry: registry})
	ve.AddRule(&ToolResultRule{})
	return ve
}

// AddRule adds a validation rule to the engine
func (ve *ValidationEngine) AddRule(rule ValidationRule) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.rules = append(ve.rules, rule)
}

// RemoveRule removes a validation rule by name
func (ve *ValidationEngine) RemoveRule(name string) bool {
	ve.mu.Lock()
	defer ve.mu.Unlock()

	for i, rule := range ve.rules {
		if rule.Name() == name {
			ve.rules = append(ve.rules[:i], ve.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Validate runs all validation rules and returns warnings
func (ve *ValidationEngine) Validate(provider string, req *GenerateRequest) []ValidationWarning {
	ve.mu.RLock()
	defer ve.mu.RUnlock()

	var warnings []ValidationWarning
	for _, rule := range ve.rules {
		warnings = append(warnings, rule.Check(provider, req)...)
	}
	return warnings
}

// GetValidationWarnings returns potential issues with a request.
// These are INFORMATIONAL - callers can choose to show warnings or ignore them.
// The library does NOT block requests based on warnings.
//
// This is the main entry point for validation. It uses the global validation engine.
func GetValidationWarnings(provider string, req *GenerateRequest) []ValidationWarning {
	return GetValidationEngine().Validate(provider, req)
}

// LogValidationWarnings writes each warning to logger at a level matching its severity.
// Providers call it before sending a request.
func LogValidationWarnings(logger zerolog.Logger, warnings []ValidationWarning) {
	for _, w := range warnings {
		var ev *zerolog.Event
		switch w.Severity {
		case SeverityError, SeverityWarning:
			ev = logger.Warn()
		default:
			ev = logger.Debug()
		}
		ev.Str("code", string(w.Code)).
			Str("field", w.Field).
			Interface("value", w.Value).
			Msg(w.Message)
	}
}

// FilterWarningsBySeverity returns warnings matching the specified severities
func FilterWarningsBySeverity(warnings []ValidationWarning, severities ...Severity) []ValidationWarning {
	filtered := make([]ValidationWarning, 0)
	severityMap := make(map[Severity]bool)
	for _, s := range severities {
		severityMap[s] = true
	}

	for _, w := range warnings {
		if severityMap[w.Severity] {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// FilterWarningsByCode returns warnings matching the specified codes
func FilterWarningsByCode(warnings []ValidationWarning, codes ...WarningCode) []ValidationWarning {
	filtered := make([]ValidationWarning, 0)
	codeMap := make(map[WarningCode]bool)
	for _, c := range codes {
		codeMap[c] = true
	}

	for _, w := range warnings {
		if codeMap[w.Code] {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
