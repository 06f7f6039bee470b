// Package registry implements the typed tables of tools, resources,
// prompts, macros, icons, and security policies (C2), plus the in-process
// temporary registry used by create_temp_tool/create_temp_resource.
package registry

import "encoding/json"

// Manual is optional structured usage metadata attached to a ToolRecord.
type Manual struct {
	UsageGuide string           `json:"usage_guide,omitempty"`
	Examples   []ManualExample  `json:"examples,omitempty"`
	Pitfalls   []string         `json:"pitfalls,omitempty"`
	ErrorCodes []string         `json:"error_codes,omitempty"`
	Verified   bool             `json:"verified"`
	State      ToolCreateState  `json:"state,omitempty"`
}

// ManualExample is one worked example recorded in a tool's manual.
type ManualExample struct {
	Input           json.RawMessage `json:"input"`
	ExpectedSummary string          `json:"expected_summary"`
	Verified        bool            `json:"verified"`
}

// ToolCreateState is the lifecycle state of an auto-created tool (§4.8).
type ToolCreateState string

const (
	ToolStateCreated  ToolCreateState = "CREATED"
	ToolStateVerified ToolCreateState = "VERIFIED"
	ToolStateUpdated  ToolCreateState = "UPDATED"
	ToolStateRemoved  ToolCreateState = "REMOVED"
)

// ToolRecord is a registry row describing one dispatchable tool.
type ToolRecord struct {
	Name           string
	Persona        string
	Description    string
	InputSchema    json.RawMessage
	ArtifactDigest string
	IsAutoCreated  bool
	Group          string
	Manual         *Manual
}

// Key returns the composite (name, persona) key.
func (t ToolRecord) Key() Key { return Key{Name: t.Name, Persona: t.Persona} }

// ResourceRecord is a registry row describing one readable resource.
type ResourceRecord struct {
	URI            string
	Persona        string
	Name           string
	Description    string
	MimeType       string
	IsDynamic      bool
	StaticBody     string
	ArtifactDigest string
	Group          string
}

// Key returns the composite (uri, persona) key.
func (r ResourceRecord) Key() Key { return Key{Name: r.URI, Persona: r.Persona} }

// PromptRecord is a registry row describing one gettable prompt.
type PromptRecord struct {
	Name            string
	Persona         string
	Description     string
	Template        string
	ArgumentsSchema []PromptArgument
	Group           string
}

// Key returns the composite (name, persona) key.
func (p PromptRecord) Key() Key { return Key{Name: p.Name, Persona: p.Persona} }

// PromptArgument describes one placeholder a prompt template accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// MacroRecord is one reusable template-engine macro definition.
type MacroRecord struct {
	Name     string
	Description string
	Template string
	IsActive bool
}

// IconRecord is a named icon blob.
type IconRecord struct {
	Name       string
	Format     string // "svg" or "png"
	BodyBase64 string
}

// RuleType is whether a SecurityPolicy allows or denies a pattern.
type RuleType string

const (
	RuleAllow RuleType = "allow"
	RuleDeny  RuleType = "deny"
)

// PolicyCategory is the surface a SecurityPolicy constrains.
type PolicyCategory string

const (
	CategoryModule    PolicyCategory = "module"
	CategoryFunction  PolicyCategory = "function"
	CategoryAttribute PolicyCategory = "attribute"
)

// SecurityPolicy is one allow/deny rule applied by the Validator.
type SecurityPolicy struct {
	ID          int64
	RuleType    RuleType
	Category    PolicyCategory
	Pattern     string
	IsActive    bool
	Description string
}

// Key is a composite (name-like, persona) key shared by Tool/Resource/Prompt
// records. For resources, Name holds the URI.
type Key struct {
	Name    string
	Persona string
}
