// Package distropack provides a typed client for the DistroPack build service API.
//
// Client uploads package sources, triggers builds for one or all enabled
// targets, and queries the status of the resulting jobs. Failures are reported
// as TransportError when no usable response was obtained and as RemoteError
// when the service answered with a non-success status.
package distropack
