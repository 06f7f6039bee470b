// Package seed loads and exports the registry's tool/resource/prompt/macro
// catalog as a flat YAML document, and seeds a built-in starter catalog into
// an empty registry at startup. It replaces the one-off pack-registration
// scripts with a package invoked from main: the external shape is YAML
// instead of a live SDK call, but the underlying idea — describe the catalog
// declaratively, apply it idempotently — is the same one those scripts used
// against a remote project.
package seed

import (
	"context"
	"fmt"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/registry"
	"gopkg.in/yaml.v3"
)

// Spec is the flat, YAML-shaped description of a registry catalog. Tool and
// resource bodies are carried inline as text; Apply pushes tool bodies
// through the artifact store and records the digest, and stores resource
// bodies directly as static bodies.
type Spec struct {
	Tools     []ToolSpec     `yaml:"tools,omitempty"`
	Resources []ResourceSpec `yaml:"resources,omitempty"`
	Prompts   []PromptSpec   `yaml:"prompts,omitempty"`
	Macros    []MacroSpec    `yaml:"macros,omitempty"`
}

// ToolSpec is one tool entry in a Spec document.
type ToolSpec struct {
	Name        string `yaml:"name"`
	Persona     string `yaml:"persona,omitempty"`
	Description string `yaml:"description"`
	Group       string `yaml:"group,omitempty"`
	Kind        string `yaml:"kind"` // "script" or "select"
	Body        string `yaml:"body"`
	InputSchema string `yaml:"input_schema,omitempty"`
}

// ResourceSpec is one resource entry in a Spec document. A Body given here
// is always registered as a static resource; dynamic resources are created
// only at runtime, through create_new_resource pointing at a script
// artifact, never through seeding.
type ResourceSpec struct {
	URI         string `yaml:"uri"`
	Persona     string `yaml:"persona,omitempty"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Group       string `yaml:"group,omitempty"`
	MimeType    string `yaml:"mime_type,omitempty"`
	Body        string `yaml:"body"`
}

// PromptSpec is one prompt entry in a Spec document.
type PromptSpec struct {
	Name        string                    `yaml:"name"`
	Persona     string                    `yaml:"persona,omitempty"`
	Description string                    `yaml:"description"`
	Group       string                    `yaml:"group,omitempty"`
	Template    string                    `yaml:"template"`
	Arguments   []registry.PromptArgument `yaml:"arguments,omitempty"`
}

// MacroSpec is one macro entry in a Spec document.
type MacroSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Template    string `yaml:"template"`
}

// Decode parses a YAML document into a Spec.
func Decode(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("seed: decoding spec: %w", err)
	}
	return &s, nil
}

// Encode renders a Spec as a YAML document.
func Encode(s *Spec) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("seed: encoding spec: %w", err)
	}
	return data, nil
}

// Store is the narrow view of the registry and artifact store Apply and
// Export need.
type Store struct {
	Registry  *registry.Registry
	Artifacts *artifact.Store
}

const defaultPersona = "default"

// Apply upserts every entry of s into the registry, pushing tool bodies
// through the artifact store first so ArtifactDigest is always populated
// from content already present in storage; resource bodies are stored as
// static bodies, without an artifact. Apply is
// idempotent: re-applying the same Spec reuses the same digests (artifact
// Put is itself idempotent) and overwrites matching rows in place.
func Apply(ctx context.Context, store Store, s *Spec) error {
	for _, ts := range s.Tools {
		persona := ts.Persona
		if persona == "" {
			persona = defaultPersona
		}
		kind := artifact.KindSelect
		if ts.Kind == "script" {
			kind = artifact.KindScript
		}
		digest, err := store.Artifacts.Put(ctx, ts.Body, kind)
		if err != nil {
			return fmt.Errorf("seed: storing body for tool %q: %w", ts.Name, err)
		}
		rec := registry.ToolRecord{
			Name:           ts.Name,
			Persona:        persona,
			Description:    ts.Description,
			Group:          ts.Group,
			ArtifactDigest: digest,
		}
		if ts.InputSchema != "" {
			rec.InputSchema = []byte(ts.InputSchema)
		} else {
			rec.InputSchema = []byte(`{"type":"object","properties":{}}`)
		}
		if err := store.Registry.UpsertTool(ctx, rec); err != nil {
			return fmt.Errorf("seed: upserting tool %q: %w", ts.Name, err)
		}
	}

	for _, rs := range s.Resources {
		persona := rs.Persona
		if persona == "" {
			persona = defaultPersona
		}
		rec := registry.ResourceRecord{
			URI:         rs.URI,
			Persona:     persona,
			Name:        rs.Name,
			Description: rs.Description,
			Group:       rs.Group,
			MimeType:    rs.MimeType,
			IsDynamic:   false,
			StaticBody:  rs.Body,
		}
		if err := store.Registry.UpsertResource(ctx, rec); err != nil {
			return fmt.Errorf("seed: upserting resource %q: %w", rs.URI, err)
		}
	}

	for _, ps := range s.Prompts {
		persona := ps.Persona
		if persona == "" {
			persona = defaultPersona
		}
		rec := registry.PromptRecord{
			Name:            ps.Name,
			Persona:         persona,
			Description:     ps.Description,
			Group:           ps.Group,
			Template:        ps.Template,
			ArgumentsSchema: ps.Arguments,
		}
		if err := store.Registry.UpsertPrompt(ctx, rec); err != nil {
			return fmt.Errorf("seed: upserting prompt %q: %w", ps.Name, err)
		}
	}

	for _, ms := range s.Macros {
		rec := registry.MacroRecord{
			Name:        ms.Name,
			Description: ms.Description,
			Template:    ms.Template,
			IsActive:    true,
		}
		if err := store.Registry.UpsertMacro(ctx, rec); err != nil {
			return fmt.Errorf("seed: upserting macro %q: %w", ms.Name, err)
		}
	}

	return nil
}

// Export reads persona's full catalog (the default persona when persona is
// empty) back out of the registry as a Spec, the inverse of Apply; macros
// are not persona-scoped and are all exported. Tool and resource bodies are resolved from
// the artifact store so the exported document is self-contained.
func Export(ctx context.Context, store Store, persona string) (*Spec, error) {
	if persona == "" {
		persona = defaultPersona
	}

	tools, err := store.Registry.ListTools(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("seed: listing tools: %w", err)
	}
	resources, err := store.Registry.ListResources(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("seed: listing resources: %w", err)
	}
	prompts, err := store.Registry.ListPrompts(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("seed: listing prompts: %w", err)
	}
	macros, err := store.Registry.ActiveMacros(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: listing macros: %w", err)
	}

	out := &Spec{}

	for _, t := range tools {
		body := ""
		kind := "select"
		if t.ArtifactDigest != "" {
			art, err := store.Artifacts.Get(ctx, t.ArtifactDigest)
			if err != nil {
				return nil, fmt.Errorf("seed: loading body for tool %q: %w", t.Name, err)
			}
			body = art.Body
			kind = string(art.Kind)
		}
		out.Tools = append(out.Tools, ToolSpec{
			Name:        t.Name,
			Persona:     t.Persona,
			Description: t.Description,
			Group:       t.Group,
			Kind:        kind,
			Body:        body,
			InputSchema: string(t.InputSchema),
		})
	}

	for _, r := range resources {
		body := r.StaticBody
		if r.IsDynamic && r.ArtifactDigest != "" {
			art, err := store.Artifacts.Get(ctx, r.ArtifactDigest)
			if err != nil {
				return nil, fmt.Errorf("seed: loading body for resource %q: %w", r.URI, err)
			}
			body = art.Body
		}
		out.Resources = append(out.Resources, ResourceSpec{
			URI:         r.URI,
			Persona:     r.Persona,
			Name:        r.Name,
			Description: r.Description,
			Group:       r.Group,
			MimeType:    r.MimeType,
			Body:        body,
		})
	}

	for _, p := range prompts {
		out.Prompts = append(out.Prompts, PromptSpec{
			Name:        p.Name,
			Persona:     p.Persona,
			Description: p.Description,
			Group:       p.Group,
			Template:    p.Template,
			Arguments:   p.ArgumentsSchema,
		})
	}

	for _, m := range macros {
		out.Macros = append(out.Macros, MacroSpec{
			Name:        m.Name,
			Description: m.Description,
			Template:    m.Template,
		})
	}

	return out, nil
}

// EnsureSeeded applies builtin only if the default persona's tool table is
// currently empty, following spec.md §5's "auto-seed from a built-in spec
// set when empty at startup." Re-runs after the first successful seed are
// no-ops, since ListTools will then return a non-empty slice.
func EnsureSeeded(ctx context.Context, store Store, builtin *Spec) (bool, error) {
	existing, err := store.Registry.ListTools(ctx, defaultPersona)
	if err != nil {
		return false, fmt.Errorf("seed: checking existing catalog: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err := Apply(ctx, store, builtin); err != nil {
		return false, fmt.Errorf("seed: applying builtin catalog: %w", err)
	}
	return true, nil
}
