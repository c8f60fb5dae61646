// Package audit derives the live integrity-audit view from the engine's
// thought log. Stage state is a pure fold over audit-module thoughts, so a
// replay of the same sequence always produces the same session state.
package audit

// Stage identifiers, in run order. The set is fixed at session start and
// never grows or shrinks; thoughts naming any other stage are ignored.
const (
	StageArchitecture  = "architecture"
	StageQAGuard       = "qa_guard"
	StageCodeQuality   = "code_quality"
	StagePatternChecks = "pattern_checks"
	StageCoreTests     = "core_tests"
	StageIntegration   = "integration"
	StageConnectivity  = "connectivity"
	StagePersistence   = "persistence"
)

// DefaultStages returns the predeclared stage set in run order.
func DefaultStages() []string {
	return []string{
		StageArchitecture,
		StageQAGuard,
		StageCodeQuality,
		StagePatternChecks,
		StageCoreTests,
		StageIntegration,
		StageConnectivity,
		StagePersistence,
	}
}
