// Package middleware provides HTTP middleware for the file server API.
//
// It includes:
//   - Access logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression for large JSON responses such as search results
package middleware
