// Package objectstore mirrors rendered videos to S3 and produces presigned
// links for the fallback notification. Keys are <prefix>/<job id>/<file>.
package objectstore
