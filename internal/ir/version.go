package ir

// Version constants for scenario schema and runtime.
const (
	// IRVersion is the scenario schema version.
	IRVersion = "1"

	// EngineVersion is the flowrt runtime version.
	EngineVersion = "0.1.0"
)
