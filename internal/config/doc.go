// Package config loads imagedrop settings.
//
// Settings come from two layers, higher overriding lower:
//
//	┌─────────────────────────────┐
//	│  2. Environment Variables   │  ← IMAGEDROP_*
//	├─────────────────────────────┤
//	│  1. Config File             │  ← .yaml, .yml or .toml
//	└─────────────────────────────┘
//
// A missing config file is not an error; an empty result leaves uploads
// disabled.
//
// # File Format
//
//	[uploadImage]
//	url = "https://img.example.com/upload"
//	method = "POST"
//	insertField = "data.url"
//	script = "upload.lua"   # relative to this file
//
//	[uploadImage.headers]
//	Authorization = "Bearer ..."
//
//	[logging]
//	level = "info"
//	format = "text"
//
// # Environment
//
//	IMAGEDROP_UPLOAD_URL            uploadImage.url
//	IMAGEDROP_UPLOAD_METHOD         uploadImage.method
//	IMAGEDROP_UPLOAD_INSERT_FIELD   uploadImage.insertField
//	IMAGEDROP_UPLOAD_SCRIPT         uploadImage.script
//	IMAGEDROP_UPLOAD_HEADER_<NAME>  uploadImage.headers.<Name>
//	IMAGEDROP_LOG_LEVEL             logging.level
//	IMAGEDROP_LOG_FORMAT            logging.format
//
// # Basic Usage
//
//	f, err := config.Load("imagedrop.toml")
//	if err != nil {
//	    return err
//	}
//	h, err := imagedrop.New(editor, root, f.ImageDrop(onMissing))
package config
