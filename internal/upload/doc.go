// Package upload implements the `upload` command, which attaches a local file
// to a named slot (reference id) of a DistroPack package.
package upload
