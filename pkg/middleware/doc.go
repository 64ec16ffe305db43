// Package middleware provides the HTTP identity adapter for services that
// sit behind an authenticating gateway. The gateway verifies credentials
// and forwards the principal's identity in trusted headers; this package
// translates those headers into a tenant.Principal on the request context,
// where the gate middleware expects it.
package middleware
