// Package dispatcher implements the Dispatcher (C5): the single entry point
// that resolves a dispatched name against the registry, verifies its
// artifact, routes to the SQL or Script executor, and is the sole place a
// call's outcome is turned into an audit entry.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/audit"
	"github.com/dynmcp/dynmcp/internal/datasession"
	"github.com/dynmcp/dynmcp/internal/registry"
	"github.com/dynmcp/dynmcp/internal/scriptexec"
	"github.com/dynmcp/dynmcp/internal/sqlexec"
)

// Errors surfaced per spec.md §7.
var (
	ErrToolNotFound        = errors.New("dispatcher: tool not found")
	ErrResourceNotFound    = errors.New("dispatcher: resource not found")
	ErrPromptNotFound      = errors.New("dispatcher: prompt not found")
	ErrArtifactMissing     = errors.New("dispatcher: artifact missing")
	ErrArtifactCorrupt     = errors.New("dispatcher: artifact corrupt")
	ErrMissingArgument     = errors.New("dispatcher: missing argument")
	ErrUnsupportedArtifact = errors.New("dispatcher: artifact kind does not support this operation")
)

// autoCreatedPrefix marks auto-created tools visibly in list_tools output
// (§4.5 "Auto-created tools are marked visibly in the description prefix").
const autoCreatedPrefix = "[auto] "

// tempPrefix marks temporary tools/resources distinctly in listings.
const tempPrefix = "[temp] "

// ToolView is one entry in a list_tools response.
type ToolView struct {
	Name          string
	Persona       string
	Description   string
	InputSchema   []byte
	Group         string
	IsTemporary   bool
	IsAutoCreated bool
}

// ResourceView is one entry in a list_resources response.
type ResourceView struct {
	URI         string
	Persona     string
	Name        string
	Description string
	MimeType    string
	Group       string
	IsTemporary bool
}

// Dispatcher wires the registry, artifact store, executors, and audit log
// into the operations spec.md §4.5 names.
type Dispatcher struct {
	registry     *registry.Registry
	temp         *registry.TempRegistry
	artifacts    *artifact.Store
	sqlExec      *sqlexec.Executor
	scriptExec   *scriptexec.Executor
	aud          *audit.Audit
	pool         *datasession.Pool
	dashboardDir string
	metaSession  interface{}
	logger       *slog.Logger
}

// Config bundles a Dispatcher's collaborators.
type Config struct {
	Registry     *registry.Registry
	Temp         *registry.TempRegistry
	Artifacts    *artifact.Store
	SQLExec      *sqlexec.Executor
	ScriptExec   *scriptexec.Executor
	Audit        *audit.Audit
	Pool         *datasession.Pool
	DashboardDir string
	MetaSession  interface{}
	// Logger receives script tools' Log calls (via scriptexec.Context),
	// keeping stdout reserved for the JSON-RPC stream under stdio
	// transport. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:     cfg.Registry,
		temp:         cfg.Temp,
		artifacts:    cfg.Artifacts,
		sqlExec:      cfg.SQLExec,
		scriptExec:   cfg.ScriptExec,
		aud:          cfg.Audit,
		pool:         cfg.Pool,
		dashboardDir: cfg.DashboardDir,
		metaSession:  cfg.MetaSession,
		logger:       logger,
	}
}

// ListTools returns every tool visible to persona, persistent then
// temporary: persistent tools ordered by group then name, temporary tools
// in creation order (§4.5, P3).
func (d *Dispatcher) ListTools(ctx context.Context, persona string) ([]ToolView, error) {
	records, err := d.registry.ListTools(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: listing tools: %w", err)
	}

	out := make([]ToolView, 0, len(records))
	for _, t := range records {
		desc := t.Description
		if t.IsAutoCreated {
			desc = autoCreatedPrefix + desc
		}
		out = append(out, ToolView{
			Name: t.Name, Persona: t.Persona, Description: desc,
			InputSchema: t.InputSchema, Group: t.Group, IsAutoCreated: t.IsAutoCreated,
		})
	}

	for _, t := range d.temp.ListTools(persona) {
		out = append(out, ToolView{
			Name: t.Name, Persona: t.Persona, Description: tempPrefix + t.Description,
			InputSchema: t.InputSchema, Group: t.Group, IsTemporary: true,
		})
	}
	return out, nil
}

// ListResources returns every resource visible to persona, persistent then
// temporary.
func (d *Dispatcher) ListResources(ctx context.Context, persona string) ([]ResourceView, error) {
	records, err := d.registry.ListResources(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: listing resources: %w", err)
	}

	out := make([]ResourceView, 0, len(records))
	for _, r := range records {
		out = append(out, ResourceView{
			URI: r.URI, Persona: r.Persona, Name: r.Name,
			Description: r.Description, MimeType: r.MimeType, Group: r.Group,
		})
	}
	for _, r := range d.temp.ListResources(persona) {
		out = append(out, ResourceView{
			URI: r.URI, Persona: r.Persona, Name: r.Name,
			Description: tempPrefix + r.Description, MimeType: r.MimeType,
			Group: r.Group, IsTemporary: true,
		})
	}
	return out, nil
}

// ListPrompts returns every prompt registered for persona.
func (d *Dispatcher) ListPrompts(ctx context.Context, persona string) ([]registry.PromptRecord, error) {
	return d.registry.ListPrompts(ctx, persona)
}

// CallTool resolves, validates, executes, and audits a dispatched tool
// call, per spec.md §4.5's six numbered steps.
func (d *Dispatcher) CallTool(ctx context.Context, name, persona string, arguments map[string]any) (result any, err error) {
	now := time.Now()
	defer func() {
		d.recordOutcome(ctx, now, name, persona, arguments, result, err)
	}()

	tool, isTemp, err := d.resolveTool(ctx, name, persona)
	if err != nil {
		return nil, err
	}

	art, err := d.loadArtifact(ctx, tool.ArtifactDigest)
	if err != nil {
		return nil, err
	}

	macros, err := d.registry.ActiveMacros(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: loading macros: %w", err)
	}

	subExecutor := func(toolName string, args map[string]any) (any, error) {
		return d.CallTool(ctx, toolName, persona, args)
	}

	switch art.Kind {
	case artifact.KindSelect:
		rows, execErr := d.sqlExec.Run(ctx, art.Body, macros, arguments, isTemp)
		if execErr != nil {
			if errors.Is(execErr, datasession.ErrBackendUnavailable) {
				return nil, fmt.Errorf("DataBackendUnavailable: %w", execErr)
			}
			return nil, execErr
		}
		return rows, nil
	case artifact.KindScript:
		toolCtx := &scriptexec.Context{
			Persona:     persona,
			ToolName:    name,
			MetaSession: d.metaSession,
			Logger:      d.logger,
			SubExecutor: subExecutor,
		}
		if db, _, online := d.pool.DB(); online {
			toolCtx.DataSession = db
		}
		return d.scriptExec.Run(ctx, art.Body, arguments, toolCtx)
	case artifact.KindUI:
		return d.dispatchDashboard(name, art)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArtifact, art.Kind)
	}
}

// resolveTool resolves (name, persona) against the temporary registry
// first, then the persistent Registry (§4.5 step 1).
func (d *Dispatcher) resolveTool(ctx context.Context, name, persona string) (registry.ToolRecord, bool, error) {
	if rec, ok := d.temp.GetTool(name, persona); ok {
		return rec, true, nil
	}
	rec, err := d.registry.GetTool(ctx, name, persona)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return registry.ToolRecord{}, false, ErrToolNotFound
		}
		return registry.ToolRecord{}, false, fmt.Errorf("dispatcher: resolving tool: %w", err)
	}
	return *rec, false, nil
}

// loadArtifact loads and integrity-checks the artifact at digest (§4.5
// steps 2-3).
func (d *Dispatcher) loadArtifact(ctx context.Context, digest string) (*artifact.Artifact, error) {
	art, err := d.artifacts.Get(ctx, digest)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrArtifactMissing
		}
		if errors.Is(err, artifact.ErrCorrupt) {
			return nil, ErrArtifactCorrupt
		}
		return nil, fmt.Errorf("dispatcher: loading artifact: %w", err)
	}
	return art, nil
}

// dispatchDashboard implements the "Dashboard outputs" rule (§6): the
// artifact is written to the configured storage directory and a runner URL
// is returned; the runner process itself is external to the core.
func (d *Dispatcher) dispatchDashboard(toolName string, art *artifact.Artifact) (string, error) {
	if d.dashboardDir == "" {
		return "", fmt.Errorf("dispatcher: dashboard storage directory not configured")
	}
	path := d.dashboardDir + "/" + sanitizeToolName(toolName) + ".html"
	if err := writeDashboardFile(path, art.Body); err != nil {
		return "", fmt.Errorf("dispatcher: writing dashboard artifact: %w", err)
	}
	return fmt.Sprintf("dashboard://%s?digest=%s", toolName, art.Digest), nil
}

func sanitizeToolName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

func writeDashboardFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}

// ReadResource resolves a resource and either returns its static body or
// dispatches its dynamic artifact through the Script Executor.
func (d *Dispatcher) ReadResource(ctx context.Context, uri, persona string) (string, error) {
	if rec, ok := d.temp.GetResource(uri, persona); ok {
		return d.readResourceBody(ctx, rec, persona)
	}
	rec, err := d.registry.GetResource(ctx, uri, persona)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return "", ErrResourceNotFound
		}
		return "", fmt.Errorf("dispatcher: resolving resource: %w", err)
	}
	return d.readResourceBody(ctx, *rec, persona)
}

func (d *Dispatcher) readResourceBody(ctx context.Context, rec registry.ResourceRecord, persona string) (string, error) {
	if !rec.IsDynamic {
		return rec.StaticBody, nil
	}
	art, err := d.loadArtifact(ctx, rec.ArtifactDigest)
	if err != nil {
		return "", err
	}
	subExecutor := func(toolName string, args map[string]any) (any, error) {
		return d.CallTool(ctx, toolName, persona, args)
	}
	toolCtx := &scriptexec.Context{Persona: persona, ToolName: rec.URI, MetaSession: d.metaSession, Logger: d.logger, SubExecutor: subExecutor}
	if db, _, online := d.pool.DB(); online {
		toolCtx.DataSession = db
	}
	result, err := d.scriptExec.Run(ctx, art.Body, map[string]any{}, toolCtx)
	if err != nil {
		return "", err
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", result), nil
}

// GetPrompt loads the template for (name, persona) and substitutes named
// placeholders from arguments, failing with ErrMissingArgument if a
// required one is absent.
func (d *Dispatcher) GetPrompt(ctx context.Context, name, persona string, arguments map[string]any) (string, error) {
	p, err := d.registry.GetPrompt(ctx, name, persona)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return "", ErrPromptNotFound
		}
		return "", fmt.Errorf("dispatcher: resolving prompt: %w", err)
	}

	out := p.Template
	for _, arg := range p.ArgumentsSchema {
		val, ok := arguments[arg.Name]
		if !ok {
			if arg.Required {
				return "", fmt.Errorf("%w: %s", ErrMissingArgument, arg.Name)
			}
			val = ""
		}
		out = strings.ReplaceAll(out, "{"+arg.Name+"}", fmt.Sprintf("%v", val))
	}
	return out, nil
}

// recordOutcome implements §4.5 step 6: on success a SUCCESS entry with a
// bounded result summary; on failure, a FAILURE entry with the full
// diagnostic and a self_correction notebook append; the original error,
// unmodified, propagates to CallTool's caller regardless.
func (d *Dispatcher) recordOutcome(ctx context.Context, now time.Time, name, persona string, arguments map[string]any, result any, callErr error) {
	if d.aud == nil {
		return
	}
	if callErr != nil {
		traceback := callErr.Error()
		_ = d.aud.Record(ctx, now, name, persona, arguments, audit.StatusFailure, "", traceback)
		_ = d.aud.AppendNotebook(ctx, now, audit.SelfCorrectionDomain, audit.SelfCorrectionKey(name),
			fmt.Sprintf("tool=%s persona=%s arguments=%v error=%s", name, persona, arguments, traceback), "dispatcher")
		return
	}
	_ = d.aud.Record(ctx, now, name, persona, arguments, audit.StatusSuccess, summarize(result), "")
}

func summarize(result any) string {
	return fmt.Sprintf("%v", result)
}
