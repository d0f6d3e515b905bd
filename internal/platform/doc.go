// Package platform provides a headless host for imagedrop: local files as
// blobs, a scratch document that records embeds, a writer-backed notifier,
// and a drop folder that turns new files into drop events.
package platform
