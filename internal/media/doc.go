// Package media generates dashboard thumbnails from poster frames
// extracted by the transcoder. Thumbnails are a best-effort nicety:
// every failure degrades to the default player icon, never to a failed
// upload.
package media
