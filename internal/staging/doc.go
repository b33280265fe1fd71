// Package staging manages the directory downloads are written to before they
// are streamed back to clients.
//
// Each download gets a job directory under the staging root. Job directories
// are removed after the file has been served (when DELETE_AFTER_SERVE is
// enabled), expired by a background janitor once they are older than
// STAGING_MAX_AGE, or cleared on demand. Directories belonging to downloads
// still in progress are never swept.
//
// All filesystem access goes through afero, so tests run against an
// in-memory filesystem.
package staging
