// Package storage owns the upload root: it is the single place that
// builds filesystem paths for video artifacts. Every read, write and
// delete of an artifact resolves through it, and any stored name that
// would escape the configured root is rejected.
package storage
