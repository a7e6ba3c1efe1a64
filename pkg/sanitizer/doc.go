// Package sanitizer normalizes user-supplied text before validation and
// storage.
//
// All functions are idempotent: applying them twice yields the same result as
// applying them once. They never fail; invalid input degrades to an empty or
// trimmed string and is rejected later by the validators.
//
// Normalization includes:
//   - Names and locations: trim, collapse internal whitespace to one space
//   - Descriptions: trim, collapse runs of blank lines, keep line breaks
//   - Usernames: trim
//   - Emails: trim, lowercase
//   - Object ids: trim, lowercase hex
package sanitizer
