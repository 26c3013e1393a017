package schema

// RequestKind identifies the payload carried by a Request.
type RequestKind string

const (
	KindStepExecution RequestKind = "step_execution"
	KindHookExecution RequestKind = "hook_execution"
	KindRefactor      RequestKind = "refactor"
	KindStepValidate  RequestKind = "step_validate"
	KindStepNames     RequestKind = "step_names"
	KindStepPositions RequestKind = "step_positions"
	KindCacheFile     RequestKind = "cache_file"
	KindDataStoreInit RequestKind = "datastore_init"
	KindScopeStart    RequestKind = "scope_start"
	KindScopeClose    RequestKind = "scope_close"
	KindKill          RequestKind = "kill"
)

// Request is one inbound message from the orchestrator. Exactly the payload
// matching Kind is read.
type Request struct {
	ID            string                `json:"id,omitempty"`
	Kind          RequestKind           `json:"kind" jsonschema:"enum=step_execution,enum=hook_execution,enum=refactor,enum=step_validate,enum=step_names,enum=step_positions,enum=cache_file,enum=datastore_init,enum=scope_start,enum=scope_close,enum=kill"`
	StepExecution *StepExecutionRequest `json:"stepExecution,omitempty"`
	HookExecution *HookExecutionRequest `json:"hookExecution,omitempty"`
	Refactor      *RefactorRequest      `json:"refactor,omitempty"`
	StepValidate  *StepValidateRequest  `json:"stepValidate,omitempty"`
	StepPositions *StepPositionsRequest `json:"stepPositions,omitempty"`
	CacheFile     *CacheFileRequest     `json:"cacheFile,omitempty"`
	DataStoreInit *DataStoreInitRequest `json:"dataStoreInit,omitempty"`
	ScopeStart    *ScopeStartRequest    `json:"scopeStart,omitempty"`
}

// ArgumentKind distinguishes plain string arguments from tables.
type ArgumentKind string

const (
	ArgumentPlain ArgumentKind = "plain"
	ArgumentTable ArgumentKind = "table"
)

// Argument is one positional step argument. Table arguments carry either the
// decoded Table or its JSON serialization in Value.
type Argument struct {
	Kind  ArgumentKind `json:"kind" jsonschema:"enum=plain,enum=table"`
	Value string       `json:"value,omitempty"`
	Table *Table       `json:"table,omitempty"`
}

// StepExecutionRequest asks for one step to run. StepText is the parsed text.
type StepExecutionRequest struct {
	StepText       string     `json:"stepText"`
	ActualStepText string     `json:"actualStepText,omitempty"`
	Arguments      []Argument `json:"arguments,omitempty"`
}

// HookExecutionRequest asks for every applicable hook of a kind to run.
type HookExecutionRequest struct {
	HookKind   HookKind `json:"hookKind" jsonschema:"enum=before_suite,enum=before_spec,enum=before_scenario,enum=before_step,enum=after_step,enum=after_scenario,enum=after_spec,enum=after_suite"`
	ActiveTags []string `json:"activeTags,omitempty"`
}

// ParameterPosition maps a parameter's old index to its new one. OldIndex -1
// introduces a new parameter.
type ParameterPosition struct {
	OldIndex int `json:"oldIndex"`
	NewIndex int `json:"newIndex"`
}

// RefactorRequest asks for the edits that rename a step and reshape its parameters.
type RefactorRequest struct {
	ImplementationID   string              `json:"implementationId"`
	OldStepText        string              `json:"oldStepText,omitempty"`
	ParameterPositions []ParameterPosition `json:"parameterPositions,omitempty"`
	NewParameterTexts  []string            `json:"newParameterTexts,omitempty"`
	NewStepText        string              `json:"newStepText"`
}

// StepValidateRequest checks whether a parsed step text resolves unambiguously.
type StepValidateRequest struct {
	StepText       string `json:"stepText"`
	ActualStepText string `json:"actualStepText,omitempty"`
}

// StepPositionsRequest lists the steps registered from a source file.
type StepPositionsRequest struct {
	Path string `json:"path"`
}

// FileStatus is the change reported for a cached source file.
type FileStatus string

const (
	FileCreated FileStatus = "created"
	FileChanged FileStatus = "changed"
	FileDeleted FileStatus = "deleted"
)

// CacheFileRequest reports a source artifact change.
type CacheFileRequest struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status" jsonschema:"enum=created,enum=changed,enum=deleted"`
}

// DataStoreInitRequest resets the suite, spec or scenario data store.
type DataStoreInitRequest struct {
	Scope string `json:"scope" jsonschema:"enum=suite,enum=spec,enum=scenario"`
}

// ScopeStartRequest opens an instance scope.
type ScopeStartRequest struct {
	Tag string `json:"tag"`
}

// Response is the outbound message for a Request.
type Response struct {
	ID              string                `json:"id,omitempty"`
	Kind            RequestKind           `json:"kind"`
	ExecutionResult *ExecutionResult      `json:"executionResult,omitempty"`
	StepValidate    *StepValidateResponse `json:"stepValidate,omitempty"`
	StepNames       []string              `json:"stepNames,omitempty"`
	StepPositions   []StepPosition        `json:"stepPositions,omitempty"`
	Refactor        *RefactorResponse     `json:"refactor,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// Validation error types reported by StepValidateResponse.
const (
	ValidationNotFound  = "not_found"
	ValidationAmbiguous = "ambiguous"
)

// StepValidateResponse answers a StepValidateRequest.
type StepValidateResponse struct {
	Valid      bool   `json:"valid"`
	ErrorType  string `json:"errorType,omitempty"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// StepPosition locates a registered step text in source.
type StepPosition struct {
	StepText string `json:"stepText"`
	Source   string `json:"source"`
	Line     int    `json:"line"`
}

// RefactorResponse carries the computed edits; files are never written.
type RefactorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Edits   []Edit `json:"edits,omitempty"`
}

// Edit replaces the span [Start, End) of File with NewText. Lines and columns
// are 1-based; columns count bytes.
type Edit struct {
	File        string `json:"file"`
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
	NewText     string `json:"newText"`
}
