// Package middleware provides HTTP middleware for the video vault
// server: request logging, Prometheus metrics collection, and gzip
// compression for compressible responses (video streams are passed
// through untouched).
package middleware
