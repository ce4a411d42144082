package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flowrt/internal/compiler"
	"github.com/roach88/flowrt/internal/harness"
	"github.com/roach88/flowrt/internal/ir"
)

// LoadMode controls how errors are handled during scenario loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the scenarios loaded from a file or directory.
type LoadResult struct {
	Scenarios []*ir.Scenario
	Sources   map[string]string // scenario name -> file or CUE package dir
	FileCount int
}

func (r *LoadResult) add(s *ir.Scenario, source string) {
	r.Scenarios = append(r.Scenarios, s)
	r.Sources[s.Name] = source
}

// LoadError represents an error that occurred during scenario loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScenarios loads scenarios from path, which is either a single .yaml,
// .yml or .cue file or a directory holding such files. In a directory, YAML
// files load one by one in name order and the .cue files are unified as one
// CUE package.
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadScenarios(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scenario path: %v", err)}}
	}

	result := &LoadResult{Sources: make(map[string]string)}

	if !info.IsDir() {
		result.FileCount = 1
		errs := loadFile(result, path, mode)
		return result, append(errs, checkLoaded(result, errs)...)
	}

	yamlFiles, cueFiles, err := FindScenarioFiles(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(yamlFiles) == 0 && len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no scenario files found in %s", path)}}
	}
	result.FileCount = len(yamlFiles) + len(cueFiles)

	var errs []error
	for _, file := range yamlFiles {
		errs = append(errs, loadYAML(result, file)...)
		if mode == LoadModeFailFast && len(errs) > 0 {
			return result, errs
		}
	}

	if len(cueFiles) > 0 {
		value, loadErr := buildCUEDir(path)
		if loadErr != nil {
			return result, append(errs, loadErr)
		}
		errs = append(errs, compileScenarios(result, value, path, mode)...)
	}

	return result, append(errs, checkLoaded(result, errs)...)
}

func loadFile(result *LoadResult, path string, mode LoadMode) []error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return loadYAML(result, path)
	case ".cue":
		data, err := os.ReadFile(path)
		if err != nil {
			return []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
		}
		value := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := value.Err(); err != nil {
			return []error{cueBuildError(err)}
		}
		return compileScenarios(result, value, path, mode)
	default:
		return []error{&LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported scenario file: %s (want .yaml, .yml or .cue)", path)}}
	}
}

func loadYAML(result *LoadResult, path string) []error {
	s, err := harness.LoadScenario(path)
	if err != nil {
		return []error{&LoadError{Code: ErrCodeInvalidScenario, Message: err.Error()}}
	}
	result.add(s, path)
	return nil
}

func buildCUEDir(dir string) (cue.Value, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, cueBuildError(err)
	}
	return value, nil
}

// cueBuildError reports the first CUE error with its position.
func cueBuildError(err error) *LoadError {
	loadErr := &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
			loadErr.Pos = positions[0]
		}
	}
	return loadErr
}

// compileScenarios compiles every field of value's "scenario" struct.
func compileScenarios(result *LoadResult, value cue.Value, source string, mode LoadMode) []error {
	scenariosVal := value.LookupPath(cue.ParsePath("scenario"))
	if !scenariosVal.Exists() {
		return nil
	}

	iter, err := scenariosVal.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating scenarios: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		s, compileErr := compiler.CompileScenario(iter.Label(), iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "scenario."+iter.Label()))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		result.add(s, source)
	}
	return errs
}

// checkLoaded reports duplicate scenario names, and an empty result when
// nothing else went wrong.
func checkLoaded(result *LoadResult, errs []error) []error {
	var out []error
	seen := make(map[string]bool, len(result.Scenarios))
	for _, s := range result.Scenarios {
		if seen[s.Name] {
			out = append(out, &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("duplicate scenario name %q", s.Name)})
		}
		seen[s.Name] = true
	}
	if len(result.Scenarios) == 0 && len(errs) == 0 {
		out = append(out, &LoadError{Code: ErrCodeGeneric, Message: "no scenarios found"})
	}
	return out
}

// FindScenarioFiles returns the YAML and CUE files directly inside dir, each
// sorted by name. Subdirectories are not searched.
func FindScenarioFiles(dir string) (yamlFiles, cueFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		case ".cue":
			cueFiles = append(cueFiles, path)
		}
	}
	slices.Sort(yamlFiles)
	slices.Sort(cueFiles)
	return yamlFiles, cueFiles, nil
}

// filterScenarios keeps the scenarios whose name matches the glob pattern.
// An empty pattern keeps everything.
func filterScenarios(scenarios []*ir.Scenario, pattern string) ([]*ir.Scenario, error) {
	if pattern == "" {
		return scenarios, nil
	}
	var out []*ir.Scenario
	for _, s := range scenarios {
		ok, err := filepath.Match(pattern, s.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeScanError       = "E002" // Directory scan error
	ErrCodeNoFiles         = "E003" // No scenario files found
	ErrCodeLoadFailed      = "E004" // File or CUE load failed
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeBuildFailed     = "E006" // CUE build failed
	ErrCodeWriteFailed     = "E007" // File write error
	ErrCodeInvalidScenario = "E008" // Scenario failed validation
	ErrCodeDuplicate       = "E009" // Two scenarios share a name
	ErrCodeUnsupported     = "E010" // Unknown file extension
	ErrCodeInvalidType     = "E104" // Invalid item type (e.g., float)
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "scenario":
		return ErrCodeInvalidScenario
	case "items":
		return ErrCodeInvalidType
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
