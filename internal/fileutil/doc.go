// Package fileutil holds the atomic write and hashing helpers shared by the
// stages that persist artifacts.
package fileutil
