package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"tickwatch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Well-known template IDs used by the notifier.
const (
	IDAvailable   = "available"
	IDSoldOut     = "sold_out"
	IDProbeFailed = "probe_failed"
	IDStartup     = "startup"
	IDTestEmail   = "test_email"
)

// Template describes one notification message.
type Template struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description"`
	Subject     string                 `yaml:"subject"`
	Body        string                 `yaml:"body"`
	Schema      map[string]interface{} `yaml:"schema"`

	bodyCompiled   *template.Template
	schemaCompiled *jsonschema.Schema
}

// FileConfig maps the messages file.
type FileConfig struct {
	Messages map[string]Template `yaml:"messages"`
}

// Snapshot is the currently loaded template set.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates map[string]Template
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry manages notification templates and hot-reloads them on file change.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the messages file and starts watching it for updates.
// IDs missing from the file fall back to built-in defaults.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("message registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read messages file failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("messages reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// NewStatic builds a registry from the built-in templates only, without a
// backing file or watcher.
func NewStatic() *Registry {
	templates := make(map[string]Template)
	for id, tpl := range builtinTemplates() {
		templates[id] = normalizeTemplate(id, tpl)
	}
	return &Registry{
		snapshot: Snapshot{
			Version:   1,
			LoadedAt:  time.Now(),
			Templates: templates,
		},
	}
}

// OnChange registers a reload listener.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot returns the current template set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Template returns the template for id.
func (r *Registry) Template(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.snapshot.Templates[strings.TrimSpace(id)]
	return tpl, ok
}

// Render validates params against the template schema and executes the body.
// It returns the subject and the rendered body.
func (r *Registry) Render(id string, params map[string]any) (string, string, error) {
	tpl, ok := r.Template(id)
	if !ok {
		return "", "", fmt.Errorf("unknown message template: %s", id)
	}
	if err := tpl.Validate(params); err != nil {
		return "", "", fmt.Errorf("message %s params invalid: %w", id, err)
	}
	if tpl.bodyCompiled == nil {
		return tpl.Subject, tpl.Body, nil
	}
	var b bytes.Buffer
	if err := tpl.bodyCompiled.Execute(&b, params); err != nil {
		return "", "", fmt.Errorf("rendering message %s failed: %w", id, err)
	}
	return tpl.Subject, b.String(), nil
}

func (r *Registry) reload() error {
	cfg, err := readMessagesFile(r.path)
	if err != nil {
		return err
	}
	templates := make(map[string]Template)
	for id, tpl := range builtinTemplates() {
		templates[id] = normalizeTemplate(id, tpl)
	}
	for name, tpl := range cfg.Messages {
		norm := normalizeTemplate(name, tpl)
		templates[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: templates,
	}
	r.mu.Unlock()
	logger.Infof("message registry loaded %d templates from %s", len(templates), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("message listener")
			cb(snap)
		}(fn)
	}
}

func normalizeTemplate(name string, tpl Template) Template {
	tpl.ID = strings.TrimSpace(tpl.ID)
	if tpl.ID == "" {
		tpl.ID = strings.TrimSpace(name)
	}
	tpl.Description = strings.TrimSpace(tpl.Description)
	if body := strings.TrimSpace(tpl.Body); body != "" {
		if compiled, err := template.New(tpl.ID).Option("missingkey=zero").Parse(body); err != nil {
			logger.Errorf("message template parse failed id=%s: %v", tpl.ID, err)
		} else {
			tpl.bodyCompiled = compiled
		}
	}
	if len(tpl.Schema) > 0 {
		if compiled, err := compileSchema(tpl.Schema); err != nil {
			logger.Errorf("message schema compile failed id=%s: %v", tpl.ID, err)
		} else {
			tpl.schemaCompiled = compiled
		}
	}
	return tpl
}

// Validate checks params against the template's schema, if one is declared.
func (t Template) Validate(params map[string]any) error {
	if t.schemaCompiled == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}
	return t.schemaCompiled.Validate(normalizeParams(params))
}

// normalizeParams converts params into plain JSON types so schema validation
// sees the same shapes an unmarshal would produce.
func normalizeParams(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeParams(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeParams(child)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func compileSchema(data map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readMessagesFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read messages file failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse messages file failed: %w", err)
	}
	return cfg, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Templates: make(map[string]Template, len(src.Templates)),
	}
	for id, tpl := range src.Templates {
		dst.Templates[id] = tpl
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func builtinTemplates() map[string]Template {
	return map[string]Template{
		IDAvailable: {
			ID:      IDAvailable,
			Subject: "[SUCCESS] Tickets Available!",
			Body:    "🎉 TICKETS ARE AVAILABLE! 🎉\n\nGo to {{.target}}",
			Schema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"target"},
			},
		},
		IDSoldOut: {
			ID:      IDSoldOut,
			Subject: "Ticket Check Report",
			Body:    "✅ Ticket Check Report\n\nTime: {{.time}}\nHTTP Status: {{.status}}\nTickets Available: false",
		},
		IDProbeFailed: {
			ID:      IDProbeFailed,
			Subject: "[Alert] Ticket Watch - Check FAILED",
			Body:    "🚨 Check FAILED 🚨\n\nTime: {{.time}}\nDetails: {{.details}}",
			Schema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"details"},
			},
		},
		IDStartup: {
			ID:      IDStartup,
			Subject: "Ticket Watch Started",
			Body:    "🤖 tickwatch is up and watching {{.target}}.",
		},
		IDTestEmail: {
			ID:      IDTestEmail,
			Subject: "[Test] Ticket Watch",
			Body:    "This is a test email to confirm your email notification settings are working correctly.",
		},
	}
}
