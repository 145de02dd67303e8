// Package deps reports whether the external binaries rsextract shells out to
// are installed.
package deps
