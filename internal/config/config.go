package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dshills/imagedrop/internal/config/loader"
	"github.com/dshills/imagedrop/internal/imagedrop"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "IMAGEDROP_"

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// File is the decoded configuration.
type File struct {
	// Upload is nil when no uploadImage section is configured.
	Upload  *UploadSettings
	Logging LoggingSettings
}

// UploadSettings mirrors the uploadImage section.
type UploadSettings struct {
	URL         string
	Method      string
	Headers     map[string]string
	InsertField string

	// Script is a Lua file defining callbackOK and/or callbackKO. A
	// relative path set in the config file is resolved against the file's
	// directory.
	Script string
}

// LoggingSettings mirrors the logging section.
type LoggingSettings struct {
	Level  slog.Level
	Format string
}

// Load reads path (if non-empty) and applies IMAGEDROP_* overrides.
func Load(path string) (*File, error) {
	return LoadWith(loader.DefaultFS(), path, loader.NewEnvLoader(EnvPrefix))
}

// LoadWith is Load with an explicit file system and environment loader.
// env may be nil.
func LoadWith(fsys loader.FileSystem, path string, env loader.Loader) (*File, error) {
	data := make(map[string]any)

	if path != "" {
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		fileData, err := l.Load()
		if err != nil {
			return nil, err
		}
		resolveScript(fileData, filepath.Dir(path))
		deepMerge(data, fileData)
	}

	if env != nil {
		envData, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		deepMerge(data, envData)
	}

	return decode(data)
}

// ImageDrop converts the settings to a handler configuration. onMissing
// receives responses lacking the configured insertField. Script callbacks
// are not loaded here; see package script.
func (f *File) ImageDrop(onMissing func(error)) imagedrop.Config {
	if f == nil || f.Upload == nil {
		return imagedrop.Config{}
	}
	upload := &imagedrop.UploadConfig{
		URL:     f.Upload.URL,
		Method:  f.Upload.Method,
		Headers: f.Upload.Headers,
	}
	if f.Upload.InsertField != "" {
		upload.CallbackOK = imagedrop.InsertField(f.Upload.InsertField, onMissing)
	}
	return imagedrop.Config{UploadImage: upload}
}

func decode(data map[string]any) (*File, error) {
	f := &File{
		Logging: LoggingSettings{Level: slog.LevelInfo, Format: FormatText},
	}

	if level, ok, err := stringAt(data, "logging.level"); err != nil {
		return nil, err
	} else if ok {
		if err := f.Logging.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, &FieldError{Path: "logging.level", Err: fmt.Errorf("%w: %q", ErrInvalidValue, level)}
		}
	}

	if format, ok, err := stringAt(data, "logging.format"); err != nil {
		return nil, err
	} else if ok {
		format = strings.ToLower(format)
		if format != FormatText && format != FormatJSON {
			return nil, &FieldError{Path: "logging.format", Err: fmt.Errorf("%w: %q", ErrInvalidValue, format)}
		}
		f.Logging.Format = format
	}

	section, ok := data["uploadImage"]
	if !ok {
		return f, nil
	}
	if _, isMap := section.(map[string]any); !isMap {
		return nil, &FieldError{Path: "uploadImage", Err: ErrTypeMismatch}
	}

	upload := &UploadSettings{}
	var err error
	if upload.URL, _, err = stringAt(data, "uploadImage.url"); err != nil {
		return nil, err
	}
	if upload.Method, _, err = stringAt(data, "uploadImage.method"); err != nil {
		return nil, err
	}
	if upload.InsertField, _, err = stringAt(data, "uploadImage.insertField"); err != nil {
		return nil, err
	}
	if upload.Script, _, err = stringAt(data, "uploadImage.script"); err != nil {
		return nil, err
	}
	if upload.Headers, err = headersAt(data, "uploadImage.headers"); err != nil {
		return nil, err
	}
	f.Upload = upload
	return f, nil
}

func stringAt(data map[string]any, path string) (string, bool, error) {
	v, ok := getByPath(data, path)
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, &FieldError{Path: path, Err: fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, v)}
	}
	return s, true, nil
}

func headersAt(data map[string]any, path string) (map[string]string, error) {
	v, ok := getByPath(data, path)
	if !ok {
		return nil, nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return nil, &FieldError{Path: path, Err: fmt.Errorf("%w: want table, got %T", ErrTypeMismatch, v)}
	}
	headers := make(map[string]string, len(m))
	for name, value := range m {
		s, isString := value.(string)
		if !isString {
			return nil, &FieldError{Path: path + "." + name, Err: fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, value)}
		}
		headers[name] = s
	}
	return headers, nil
}

// resolveScript makes a relative uploadImage.script in data relative to dir.
func resolveScript(data map[string]any, dir string) {
	upload, ok := data["uploadImage"].(map[string]any)
	if !ok {
		return
	}
	if p, ok := upload["script"].(string); ok && p != "" && !filepath.IsAbs(p) {
		upload["script"] = filepath.Join(dir, p)
	}
}

// deepMerge recursively merges src into dst. Maps are merged; other
// values in src replace those in dst.
func deepMerge(dst, src map[string]any) {
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
}

// getByPath retrieves a value from a nested map using a dot-separated path.
func getByPath(data map[string]any, path string) (any, bool) {
	current := any(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}
