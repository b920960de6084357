// Package util provides small generic helpers shared across authkit,
// primarily pointer helpers for building sparse JSON payloads where
// absent fields must be omitted rather than sent as zero values.
package util
