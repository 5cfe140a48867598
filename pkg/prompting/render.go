package prompting

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultMadlibSubdir is the directory searched for madlib files when no
// explicit directory is configured, resolved next to the template file.
const defaultMadlibSubdir = "madlib"

// Setting keys permitted per template type. Providing a key outside the
// active type's list is a hard error; settings for the other type are
// ignored entirely.
var (
	textSettingKeys  = []string{"reasoning_effort", "system_prompt", "verbosity"}
	imageSettingKeys = []string{"aspect_ratio", "image_input", "output_format"}
)

type renderConfig struct {
	vars          Variables
	overrides     Object
	textSettings  Object
	imageSettings Object
	madlibDir     string
	rng           *rand.Rand
	selections    SelectionLog
}

// RenderOption customizes a single Render call.
type RenderOption func(*renderConfig)

// WithVariables supplies the runtime values consulted by ${var:key}
// placeholders.
func WithVariables(vars Variables) RenderOption {
	return func(cfg *renderConfig) { cfg.vars = vars }
}

// WithOverrides merges arbitrary top-level fields over the parsed
// template before resolution. The merge is a shallow key replace;
// nested structures are not merged.
func WithOverrides(overrides Object) RenderOption {
	return func(cfg *renderConfig) { cfg.overrides = overrides }
}

// WithTextSettings supplies overrides applied only when the document's
// type is "text". Keys must be in the text allow-list.
func WithTextSettings(settings Object) RenderOption {
	return func(cfg *renderConfig) { cfg.textSettings = settings }
}

// WithImageSettings supplies overrides applied only when the document's
// type is "image". Keys must be in the image allow-list.
func WithImageSettings(settings Object) RenderOption {
	return func(cfg *renderConfig) { cfg.imageSettings = settings }
}

// WithMadlibDir overrides the directory containing madlib JSON files.
// The default is the "madlib" directory next to the template.
func WithMadlibDir(dir string) RenderOption {
	return func(cfg *renderConfig) { cfg.madlibDir = dir }
}

// WithRand supplies the random source for madlib draws. Rendering with
// the same seeded source, template, variables, and madlib files is fully
// deterministic. When omitted, the shared global source is used.
func WithRand(rng *rand.Rand) RenderOption {
	return func(cfg *renderConfig) { cfg.rng = rng }
}

// WithSelectionLog supplies the log that receives every madlib draw.
// Passing a shared log accumulates selections across multiple renders.
func WithSelectionLog(log SelectionLog) RenderOption {
	return func(cfg *renderConfig) { cfg.selections = log }
}

// Renderer resolves prompt templates. The choice store passed at
// construction caches madlib files across Render calls; sharing one
// renderer between goroutines is safe as long as each call supplies its
// own random source and selection log.
type Renderer struct {
	store *ChoiceStore
}

// NewRenderer creates a Renderer using store for madlib file caching.
// A nil store gets a fresh one with the default capacity.
func NewRenderer(store *ChoiceStore) *Renderer {
	if store == nil {
		store = NewChoiceStore(0)
	}
	return &Renderer{store: store}
}

// Render loads the JSON template at templatePath, applies overrides and
// type-scoped settings, and resolves every placeholder in the document.
// It returns the fully substituted document; on any failure it returns
// a *Error and no partial result.
//
// Settings whose type does not match the document's resolved "type"
// field are ignored rather than rejected; only settings for the active
// type are validated against the allow-list.
func (r *Renderer) Render(templatePath string, opts ...RenderOption) (Object, error) {
	var cfg renderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(templatePath); err != nil {
		if os.IsNotExist(err) {
			return nil, newErrorf("template not found: %s", templatePath)
		}
		return nil, wrapErrorf(err, "cannot access template %s", templatePath)
	}

	doc, err := loadTemplate(templatePath)
	if err != nil {
		return nil, err
	}

	merged := make(Object, len(doc)+len(cfg.overrides))
	for key, value := range doc {
		merged[key] = value
	}
	for key, value := range cfg.overrides {
		merged[key] = value
	}

	docType, _ := merged["type"].(String)
	if docType == "text" && len(cfg.textSettings) > 0 {
		if err := validateSettingKeys(cfg.textSettings, textSettingKeys, "text_settings"); err != nil {
			return nil, err
		}
		for key, value := range cfg.textSettings {
			merged[key] = value
		}
	}
	if docType == "image" && len(cfg.imageSettings) > 0 {
		if err := validateSettingKeys(cfg.imageSettings, imageSettingKeys, "image_settings"); err != nil {
			return nil, err
		}
		for key, value := range cfg.imageSettings {
			merged[key] = value
		}
	}

	madlibDir, err := resolveMadlibDir(templatePath, cfg.madlibDir)
	if err != nil {
		return nil, err
	}

	selections := cfg.selections
	if selections == nil {
		selections = make(SelectionLog)
	}

	rc := &resolveContext{
		madlibDir:  madlibDir,
		vars:       cfg.vars,
		rng:        cfg.rng,
		store:      r.store,
		selections: selections,
	}
	resolved, err := rc.resolveValue(merged)
	if err != nil {
		return nil, err
	}
	return resolved.(Object), nil
}

func loadTemplate(path string) (Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErrorf(err, "cannot read template %s", path)
	}
	parsed, err := decodeJSON(data)
	if err != nil {
		return nil, wrapErrorf(err, "invalid JSON in %s", path)
	}
	doc, ok := parsed.(Object)
	if !ok {
		return nil, newErrorf("template %s must contain a JSON object at the top level", path)
	}
	return doc, nil
}

func resolveMadlibDir(templatePath, explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = filepath.Join(filepath.Dir(templatePath), defaultMadlibSubdir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", newErrorf("madlib directory not found: %s", dir)
		}
		return "", wrapErrorf(err, "cannot access madlib directory %s", dir)
	}
	if !info.IsDir() {
		return "", newErrorf("madlib path is not a directory: %s", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", wrapErrorf(err, "cannot resolve madlib directory %s", dir)
	}
	return abs, nil
}

func validateSettingKeys(provided Object, allowed []string, label string) error {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}
	var invalid []string
	for key := range provided {
		if _, ok := allowedSet[key]; !ok {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return newErrorf("unsupported key(s) for %s: %s (allowed: %s)",
		label, strings.Join(invalid, ", "), strings.Join(allowed, ", "))
}
