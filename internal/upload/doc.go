// Package upload implements the ingestion pipeline: validate the
// uploaded filename, persist the raw bytes under the upload root,
// normalize non-mp4 containers through the transcoder, and commit
// exactly one metadata record for the final artifact.
//
// The pipeline either commits a record whose stored name points at an
// existing canonical file, or cleans up after itself and reports an
// error; readers never observe a partial ingestion.
package upload
