package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("registry: not found")

// ErrDualFieldViolation is returned when a ResourceRecord violates the
// static-xor-dynamic invariant.
var ErrDualFieldViolation = errors.New("registry: resource must set exactly one of static_body or artifact_digest")

// ErrArtifactNotFound is returned when upsert references an unknown digest.
var ErrArtifactNotFound = errors.New("registry: referenced artifact digest does not exist")

// ArtifactChecker is the narrow view of internal/artifact.Store the Registry
// needs to enforce the "referenced digest exists" invariant (§4.2).
type ArtifactChecker interface {
	Exists(ctx context.Context, digest string) (bool, error)
}

// Registry is the persistent, SQL-backed store of tools, resources,
// prompts, macros, icons, and policies (C2).
type Registry struct {
	db        *sql.DB
	names     NameMapper
	artifacts ArtifactChecker
}

// New creates a Registry over db using names for table resolution.
// artifacts may be nil to skip the digest-existence check (tests).
func New(db *sql.DB, names NameMapper, artifacts ArtifactChecker) *Registry {
	return &Registry{db: db, names: names, artifacts: artifacts}
}

// EnsureSchema creates every registry table if it does not already exist.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT NOT NULL, persona TEXT NOT NULL, description TEXT,
			input_schema TEXT, artifact_digest TEXT NOT NULL,
			is_auto_created INTEGER NOT NULL DEFAULT 0, "group" TEXT,
			manual TEXT,
			PRIMARY KEY (name, persona)
		)`, r.names.Table("tools")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			uri TEXT NOT NULL, persona TEXT NOT NULL, name TEXT, description TEXT,
			mime_type TEXT, is_dynamic INTEGER NOT NULL DEFAULT 0,
			static_body TEXT, artifact_digest TEXT, "group" TEXT,
			PRIMARY KEY (uri, persona)
		)`, r.names.Table("resources")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT NOT NULL, persona TEXT NOT NULL, description TEXT,
			template TEXT NOT NULL, arguments_schema TEXT, "group" TEXT,
			PRIMARY KEY (name, persona)
		)`, r.names.Table("prompts")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY, description TEXT, template TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		)`, r.names.Table("macros")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY, format TEXT NOT NULL, body_base64 TEXT NOT NULL
		)`, r.names.Table("icons")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT, rule_type TEXT NOT NULL,
			category TEXT NOT NULL, pattern TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1, description TEXT
		)`, r.names.Table("policies")),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("registry: ensuring schema: %w", err)
		}
	}
	return nil
}

// --- Tools ---

// UpsertTool inserts or replaces a ToolRecord, enforcing the Registry's
// invariants (§4.2).
func (r *Registry) UpsertTool(ctx context.Context, t ToolRecord) error {
	if err := r.checkArtifact(ctx, t.ArtifactDigest); err != nil {
		return err
	}
	var manualJSON []byte
	if t.Manual != nil {
		var err error
		manualJSON, err = json.Marshal(t.Manual)
		if err != nil {
			return fmt.Errorf("registry: marshaling manual: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, persona, description, input_schema, artifact_digest, is_auto_created, "group", manual)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, persona) DO UPDATE SET
		   description=excluded.description, input_schema=excluded.input_schema,
		   artifact_digest=excluded.artifact_digest, is_auto_created=excluded.is_auto_created,
		   "group"=excluded."group", manual=excluded.manual`,
		r.names.Table("tools")),
		t.Name, t.Persona, t.Description, string(t.InputSchema), t.ArtifactDigest,
		boolToInt(t.IsAutoCreated), t.Group, string(manualJSON))
	if err != nil {
		return fmt.Errorf("registry: upserting tool %s/%s: %w", t.Persona, t.Name, err)
	}
	return nil
}

// GetTool returns the ToolRecord for (name, persona).
func (r *Registry) GetTool(ctx context.Context, name, persona string) (*ToolRecord, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT name, persona, description, input_schema, artifact_digest, is_auto_created, "group", manual
		 FROM %s WHERE name = ? AND persona = ?`, r.names.Table("tools")), name, persona)
	return scanTool(row)
}

// ListTools returns every ToolRecord for persona, ordered by group then name
// (spec.md §4.5 — ordering is part of the observable contract).
func (r *Registry) ListTools(ctx context.Context, persona string) ([]ToolRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, persona, description, input_schema, artifact_digest, is_auto_created, "group", manual
		 FROM %s WHERE persona = ? ORDER BY "group" ASC, name ASC`, r.names.Table("tools")), persona)
	if err != nil {
		return nil, fmt.Errorf("registry: listing tools: %w", err)
	}
	defer rows.Close()

	var out []ToolRecord
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTool removes a ToolRecord (soft delete via removal, §3).
func (r *Registry) DeleteTool(ctx context.Context, name, persona string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE name = ? AND persona = ?`, r.names.Table("tools")), name, persona)
	if err != nil {
		return fmt.Errorf("registry: deleting tool %s/%s: %w", persona, name, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTool(row scanner) (*ToolRecord, error) {
	var t ToolRecord
	var inputSchema, manual sql.NullString
	var isAuto int
	if err := row.Scan(&t.Name, &t.Persona, &t.Description, &inputSchema, &t.ArtifactDigest, &isAuto, &t.Group, &manual); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry: scanning tool: %w", err)
	}
	t.IsAutoCreated = isAuto != 0
	if inputSchema.Valid {
		t.InputSchema = json.RawMessage(inputSchema.String)
	}
	if manual.Valid && manual.String != "" {
		var m Manual
		if err := json.Unmarshal([]byte(manual.String), &m); err == nil {
			t.Manual = &m
		}
	}
	return &t, nil
}

// --- Resources ---

// UpsertResource inserts or replaces a ResourceRecord.
func (r *Registry) UpsertResource(ctx context.Context, res ResourceRecord) error {
	if res.IsDynamic {
		if res.ArtifactDigest == "" || res.StaticBody != "" {
			return ErrDualFieldViolation
		}
		if err := r.checkArtifact(ctx, res.ArtifactDigest); err != nil {
			return err
		}
	} else {
		if res.StaticBody == "" || res.ArtifactDigest != "" {
			return ErrDualFieldViolation
		}
	}

	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (uri, persona, name, description, mime_type, is_dynamic, static_body, artifact_digest, "group")
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (uri, persona) DO UPDATE SET
		   name=excluded.name, description=excluded.description, mime_type=excluded.mime_type,
		   is_dynamic=excluded.is_dynamic, static_body=excluded.static_body,
		   artifact_digest=excluded.artifact_digest, "group"=excluded."group"`,
		r.names.Table("resources")),
		res.URI, res.Persona, res.Name, res.Description, res.MimeType,
		boolToInt(res.IsDynamic), res.StaticBody, res.ArtifactDigest, res.Group)
	if err != nil {
		return fmt.Errorf("registry: upserting resource %s/%s: %w", res.Persona, res.URI, err)
	}
	return nil
}

// GetResource returns the ResourceRecord for (uri, persona).
func (r *Registry) GetResource(ctx context.Context, uri, persona string) (*ResourceRecord, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT uri, persona, name, description, mime_type, is_dynamic, static_body, artifact_digest, "group"
		 FROM %s WHERE uri = ? AND persona = ?`, r.names.Table("resources")), uri, persona)
	return scanResource(row)
}

// ListResources returns every ResourceRecord for persona, ordered by group
// then name.
func (r *Registry) ListResources(ctx context.Context, persona string) ([]ResourceRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT uri, persona, name, description, mime_type, is_dynamic, static_body, artifact_digest, "group"
		 FROM %s WHERE persona = ? ORDER BY "group" ASC, name ASC`, r.names.Table("resources")), persona)
	if err != nil {
		return nil, fmt.Errorf("registry: listing resources: %w", err)
	}
	defer rows.Close()

	var out []ResourceRecord
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanResource(row scanner) (*ResourceRecord, error) {
	var res ResourceRecord
	var mimeType, staticBody, digest sql.NullString
	var isDynamic int
	if err := row.Scan(&res.URI, &res.Persona, &res.Name, &res.Description, &mimeType,
		&isDynamic, &staticBody, &digest, &res.Group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry: scanning resource: %w", err)
	}
	res.MimeType = mimeType.String
	res.IsDynamic = isDynamic != 0
	res.StaticBody = staticBody.String
	res.ArtifactDigest = digest.String
	return &res, nil
}

// --- Prompts ---

// UpsertPrompt inserts or replaces a PromptRecord.
func (r *Registry) UpsertPrompt(ctx context.Context, p PromptRecord) error {
	argsJSON, err := json.Marshal(p.ArgumentsSchema)
	if err != nil {
		return fmt.Errorf("registry: marshaling prompt arguments: %w", err)
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, persona, description, template, arguments_schema, "group")
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, persona) DO UPDATE SET
		   description=excluded.description, template=excluded.template,
		   arguments_schema=excluded.arguments_schema, "group"=excluded."group"`,
		r.names.Table("prompts")),
		p.Name, p.Persona, p.Description, p.Template, string(argsJSON), p.Group)
	if err != nil {
		return fmt.Errorf("registry: upserting prompt %s/%s: %w", p.Persona, p.Name, err)
	}
	return nil
}

// GetPrompt returns the PromptRecord for (name, persona).
func (r *Registry) GetPrompt(ctx context.Context, name, persona string) (*PromptRecord, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT name, persona, description, template, arguments_schema, "group"
		 FROM %s WHERE name = ? AND persona = ?`, r.names.Table("prompts")), name, persona)
	return scanPrompt(row)
}

// ListPrompts returns every PromptRecord for persona, ordered by group then
// name.
func (r *Registry) ListPrompts(ctx context.Context, persona string) ([]PromptRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, persona, description, template, arguments_schema, "group"
		 FROM %s WHERE persona = ? ORDER BY "group" ASC, name ASC`, r.names.Table("prompts")), persona)
	if err != nil {
		return nil, fmt.Errorf("registry: listing prompts: %w", err)
	}
	defer rows.Close()

	var out []PromptRecord
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPrompt(row scanner) (*PromptRecord, error) {
	var p PromptRecord
	var argsJSON sql.NullString
	if err := row.Scan(&p.Name, &p.Persona, &p.Description, &p.Template, &argsJSON, &p.Group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry: scanning prompt: %w", err)
	}
	if argsJSON.Valid && argsJSON.String != "" {
		_ = json.Unmarshal([]byte(argsJSON.String), &p.ArgumentsSchema)
	}
	return &p, nil
}

// --- Macros ---

// UpsertMacro inserts or replaces a MacroRecord.
func (r *Registry) UpsertMacro(ctx context.Context, m MacroRecord) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, description, template, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   description=excluded.description, template=excluded.template, is_active=excluded.is_active`,
		r.names.Table("macros")),
		m.Name, m.Description, m.Template, boolToInt(m.IsActive))
	if err != nil {
		return fmt.Errorf("registry: upserting macro %s: %w", m.Name, err)
	}
	return nil
}

// ActiveMacros returns every active MacroRecord ordered by name, the
// deterministic tiebreak this implementation uses for "textual order" in
// spec.md §4.4/§8 (P8).
func (r *Registry) ActiveMacros(ctx context.Context) ([]MacroRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, description, template, is_active FROM %s WHERE is_active = 1 ORDER BY name ASC`,
		r.names.Table("macros")))
	if err != nil {
		return nil, fmt.Errorf("registry: listing active macros: %w", err)
	}
	defer rows.Close()

	var out []MacroRecord
	for rows.Next() {
		var m MacroRecord
		var isActive int
		if err := rows.Scan(&m.Name, &m.Description, &m.Template, &isActive); err != nil {
			return nil, fmt.Errorf("registry: scanning macro: %w", err)
		}
		m.IsActive = isActive != 0
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, rows.Err()
}

// --- Icons ---

// UpsertIcon inserts or replaces an IconRecord.
func (r *Registry) UpsertIcon(ctx context.Context, icon IconRecord) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, format, body_base64) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   format=excluded.format, body_base64=excluded.body_base64`,
		r.names.Table("icons")),
		icon.Name, icon.Format, icon.BodyBase64)
	if err != nil {
		return fmt.Errorf("registry: upserting icon %s: %w", icon.Name, err)
	}
	return nil
}

// GetIcon returns the icon named name, or ErrNotFound.
func (r *Registry) GetIcon(ctx context.Context, name string) (*IconRecord, error) {
	var icon IconRecord
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT name, format, body_base64 FROM %s WHERE name = ?`, r.names.Table("icons")),
		name).Scan(&icon.Name, &icon.Format, &icon.BodyBase64)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: getting icon %s: %w", name, err)
	}
	return &icon, nil
}

// ListIcons returns every IconRecord ordered by name.
func (r *Registry) ListIcons(ctx context.Context) ([]IconRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, format, body_base64 FROM %s ORDER BY name ASC`, r.names.Table("icons")))
	if err != nil {
		return nil, fmt.Errorf("registry: listing icons: %w", err)
	}
	defer rows.Close()

	var out []IconRecord
	for rows.Next() {
		var icon IconRecord
		if err := rows.Scan(&icon.Name, &icon.Format, &icon.BodyBase64); err != nil {
			return nil, fmt.Errorf("registry: scanning icon: %w", err)
		}
		out = append(out, icon)
	}
	return out, rows.Err()
}

// --- Security policies ---

// UpsertPolicy inserts a SecurityPolicy row.
func (r *Registry) UpsertPolicy(ctx context.Context, p SecurityPolicy) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (rule_type, category, pattern, is_active, description) VALUES (?, ?, ?, ?, ?)`,
		r.names.Table("policies")),
		string(p.RuleType), string(p.Category), p.Pattern, boolToInt(p.IsActive), p.Description)
	if err != nil {
		return 0, fmt.Errorf("registry: upserting policy: %w", err)
	}
	return res.LastInsertId()
}

// ActivePolicies returns every active SecurityPolicy row.
func (r *Registry) ActivePolicies(ctx context.Context) ([]SecurityPolicy, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, rule_type, category, pattern, is_active, description FROM %s WHERE is_active = 1`,
		r.names.Table("policies")))
	if err != nil {
		return nil, fmt.Errorf("registry: listing active policies: %w", err)
	}
	defer rows.Close()

	var out []SecurityPolicy
	for rows.Next() {
		var p SecurityPolicy
		var isActive int
		if err := rows.Scan(&p.ID, &p.RuleType, &p.Category, &p.Pattern, &isActive, &p.Description); err != nil {
			return nil, fmt.Errorf("registry: scanning policy: %w", err)
		}
		p.IsActive = isActive != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Registry) checkArtifact(ctx context.Context, digest string) error {
	if r.artifacts == nil || digest == "" {
		return nil
	}
	ok, err := r.artifacts.Exists(ctx, digest)
	if err != nil {
		return fmt.Errorf("registry: checking artifact digest: %w", err)
	}
	if !ok {
		return ErrArtifactNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewID returns a fresh random identifier for records that do not have a
// natural composite key (icons excepted — they're named).
func NewID() string {
	return uuid.NewString()
}
