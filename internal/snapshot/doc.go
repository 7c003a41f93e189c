// Package snapshot grabs a single still image from the site camera.
//
// FFmpeg shells out to ffmpeg against the configured RTSP URL and writes
// <dir>/<uuid>.jpg. Disabled stands in when no camera is configured. Callers
// treat every error as "no image" and carry on.
package snapshot
