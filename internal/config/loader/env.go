package loader

import (
	"net/http"
	"os"
	"strings"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "IMAGEDROP_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "IMAGEDROP_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "UPLOAD_URL":          "uploadImage.url",
		prefix + "UPLOAD_METHOD":       "uploadImage.method",
		prefix + "UPLOAD_INSERT_FIELD": "uploadImage.insertField",
		prefix + "UPLOAD_SCRIPT":       "uploadImage.script",
		prefix + "LOG_LEVEL":           "logging.level",
		prefix + "LOG_FORMAT":          "logging.format",
	}
}

// headerInfix marks variables that set upload headers:
// IMAGEDROP_UPLOAD_HEADER_X_API_KEY sets the "X-Api-Key" header.
const headerInfix = "UPLOAD_HEADER_"

// Load reads environment variables and returns a configuration map.
// Values are kept as strings. Unknown prefixed variables are ignored.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		if path, mapped := l.mapping[name]; mapped {
			setByPath(config, path, value)
			continue
		}

		rest := strings.TrimPrefix(name, l.prefix)
		if header, isHeader := strings.CutPrefix(rest, headerInfix); isHeader && header != "" {
			headers := ensureMap(ensureMap(config, "uploadImage"), "headers")
			headers[headerName(header)] = value
		}
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// headerName converts X_API_KEY to X-Api-Key.
func headerName(s string) string {
	return http.CanonicalHeaderKey(strings.ReplaceAll(s, "_", "-"))
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	// Navigate/create intermediate maps
	for i := 0; i < len(parts)-1; i++ {
		current = ensureMap(current, parts[i])
	}

	// Set the final value
	current[parts[len(parts)-1]] = value
}

// ensureMap returns data[key] as a map, creating it if needed.
func ensureMap(data map[string]any, key string) map[string]any {
	if next, ok := data[key].(map[string]any); ok {
		return next
	}
	next := make(map[string]any)
	data[key] = next
	return next
}
