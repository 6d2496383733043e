// Package transcoder wraps the external FFmpeg binary used to normalize
// uploaded videos to the canonical mp4 container and to extract poster
// frames for thumbnails.
//
// Invocations are synchronous and bounded by a wall-clock timeout; the
// caller decides what to do with a failure. FFmpeg must be installed and
// reachable at the configured path.
package transcoder
