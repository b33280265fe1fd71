// Package handlers provides HTTP request handlers for the media-fetch API.
//
// It includes handlers for:
//   - Listing the downloadable formats of a video URL
//   - Downloading and streaming a merged file as an attachment
//   - Clearing the staging area
//   - Health checks, version and Prometheus metrics
//
// Every failure is answered with a JSON body of the form {"error": "..."}.
package handlers
