package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/imagedrop/internal/imagedrop"
)

type staticEnv map[string]any

func (e staticEnv) Load() (map[string]any, error) { return e, nil }

type failingEnv struct{}

func (failingEnv) Load() (map[string]any, error) { return nil, errors.New("boom") }

func TestLoad_Defaults(t *testing.T) {
	f, err := LoadWith(fstest.MapFS{}, "", nil)
	require.NoError(t, err)

	assert.Nil(t, f.Upload)
	assert.Equal(t, slog.LevelInfo, f.Logging.Level)
	assert.Equal(t, FormatText, f.Logging.Format)
	assert.Equal(t, imagedrop.Config{}, f.ImageDrop(nil))
}

func TestLoad_MissingFile(t *testing.T) {
	f, err := LoadWith(fstest.MapFS{}, "absent.toml", nil)
	require.NoError(t, err)
	assert.Nil(t, f.Upload)
}

func TestLoad_TOML(t *testing.T) {
	fsys := fstest.MapFS{"imagedrop.toml": {Data: []byte(`
[uploadImage]
url = "https://img.example.com/upload"
method = "put"
insertField = "url"

[uploadImage.headers]
Authorization = "Bearer t"

[logging]
level = "debug"
format = "JSON"
`)}}

	f, err := LoadWith(fsys, "imagedrop.toml", nil)
	require.NoError(t, err)

	require.NotNil(t, f.Upload)
	assert.Equal(t, &UploadSettings{
		URL:         "https://img.example.com/upload",
		Method:      "put",
		Headers:     map[string]string{"Authorization": "Bearer t"},
		InsertField: "url",
	}, f.Upload)
	assert.Equal(t, slog.LevelDebug, f.Logging.Level)
	assert.Equal(t, FormatJSON, f.Logging.Format)
}

func TestLoad_YAMLWithEnvOverrides(t *testing.T) {
	fsys := fstest.MapFS{"imagedrop.yaml": {Data: []byte(`
uploadImage:
  url: https://file.example.com
  headers:
    X-Trace: "1"
logging:
  level: warn
`)}}
	env := staticEnv{
		"uploadImage": map[string]any{
			"url":     "https://env.example.com",
			"headers": map[string]any{"X-Api-Key": "k"},
		},
	}

	f, err := LoadWith(fsys, "imagedrop.yaml", env)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", f.Upload.URL)
	assert.Equal(t, map[string]string{"X-Trace": "1", "X-Api-Key": "k"}, f.Upload.Headers)
	assert.Equal(t, slog.LevelWarn, f.Logging.Level)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("IMAGEDROP_UPLOAD_URL", "https://env.example.com")
	t.Setenv("IMAGEDROP_UPLOAD_HEADER_X_API_KEY", "secret")

	f, err := Load("")
	require.NoError(t, err)

	require.NotNil(t, f.Upload)
	assert.Equal(t, "https://env.example.com", f.Upload.URL)
	assert.Equal(t, "secret", f.Upload.Headers["X-Api-Key"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
		path    string
	}{
		{"url not string", "uploadImage:\n  url: 12\n", ErrTypeMismatch, "uploadImage.url"},
		{"section not table", "uploadImage: x\n", ErrTypeMismatch, "uploadImage"},
		{"headers not table", "uploadImage:\n  headers: [a]\n", ErrTypeMismatch, "uploadImage.headers"},
		{"header not string", "uploadImage:\n  headers:\n    X-N: 3\n", ErrTypeMismatch, "uploadImage.headers.X-N"},
		{"bad level", "logging:\n  level: loud\n", ErrInvalidValue, "logging.level"},
		{"bad format", "logging:\n  format: xml\n", ErrInvalidValue, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"c.yaml": {Data: []byte(tt.content)}}
			_, err := LoadWith(fsys, "c.yaml", nil)

			require.ErrorIs(t, err, tt.target)
			var ferr *FieldError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.path, ferr.Path)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := LoadWith(fstest.MapFS{}, "c.json", nil)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoad_EnvError(t *testing.T) {
	_, err := LoadWith(fstest.MapFS{}, "", failingEnv{})
	assert.ErrorContains(t, err, "loading environment: boom")
}

func TestFile_ImageDrop(t *testing.T) {
	f := &File{Upload: &UploadSettings{
		URL:     "https://u",
		Method:  "PUT",
		Headers: map[string]string{"A": "b"},
	}}

	cfg := f.ImageDrop(nil)
	require.NotNil(t, cfg.UploadImage)
	assert.Equal(t, "https://u", cfg.UploadImage.URL)
	assert.Equal(t, "PUT", cfg.UploadImage.Method)
	assert.Equal(t, map[string]string{"A": "b"}, cfg.UploadImage.Headers)
	assert.Nil(t, cfg.UploadImage.CallbackOK)
}

func TestFile_ImageDropInsertField(t *testing.T) {
	var missing []error
	f := &File{Upload: &UploadSettings{URL: "https://u", InsertField: "data.url"}}
	cfg := f.ImageDrop(func(err error) { missing = append(missing, err) })
	require.NotNil(t, cfg.UploadImage.CallbackOK)

	var inserted []any
	insert := func(v any) { inserted = append(inserted, v) }

	cfg.UploadImage.CallbackOK(map[string]any{"data": map[string]any{"url": "https://cdn/x.png"}}, insert)
	cfg.UploadImage.CallbackOK(map[string]any{"other": 1}, insert)

	assert.Equal(t, []any{"https://cdn/x.png"}, inserted)
	assert.Len(t, missing, 1)
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"a": map[string]any{"x": 1, "y": 2},
		"b": "keep",
	}
	deepMerge(dst, map[string]any{
		"a": map[string]any{"y": 3},
		"c": "new",
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{"x": 1, "y": 3},
		"b": "keep",
		"c": "new",
	}, dst)
}

func TestLoad_ScriptRelativeToConfigFile(t *testing.T) {
	fsys := fstest.MapFS{"conf/imagedrop.yaml": {Data: []byte(`
uploadImage:
  url: https://img.example.com/upload
  script: hooks/upload.lua
`)}}

	f, err := LoadWith(fsys, "conf/imagedrop.yaml", nil)
	require.NoError(t, err)
	require.NotNil(t, f.Upload)
	assert.Equal(t, filepath.Join("conf", "hooks", "upload.lua"), f.Upload.Script)

	fsys["abs.yaml"] = &fstest.MapFile{Data: []byte("uploadImage:\n  url: u\n  script: /etc/imagedrop/upload.lua\n")}
	f, err = LoadWith(fsys, "abs.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/imagedrop/upload.lua", f.Upload.Script)
}

func TestLoad_ScriptFromEnvIsNotRebased(t *testing.T) {
	fsys := fstest.MapFS{"conf/imagedrop.toml": {Data: []byte("[uploadImage]\nurl = \"u\"\n")}}
	env := staticEnv{"uploadImage": map[string]any{"script": "local.lua"}}

	f, err := LoadWith(fsys, "conf/imagedrop.toml", env)
	require.NoError(t, err)
	assert.Equal(t, "local.lua", f.Upload.Script)
}

func TestLoad_ScriptTypeMismatch(t *testing.T) {
	env := staticEnv{"uploadImage": map[string]any{"url": "u", "script": []any{"a.lua"}}}

	_, err := LoadWith(fstest.MapFS{}, "", env)
	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "uploadImage.script", ferr.Path)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
