// Package middleware provides HTTP middleware for the media-fetch API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - CORS handling for browser front ends (github.com/rs/cors)
//   - gzip compression of JSON responses
//
// Every wrapper implements Unwrap so http.ResponseController can reach the
// connection when downloads are streamed.
package middleware
