// Package sanitizer provides input normalization for marketplace data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Phone numbers: convert to E.164 format (+[country][number])
//   - Free text (names, titles, addresses): collapse whitespace, trim
//   - Cities and categories: lowercase after whitespace normalization
//   - Pickup codes: uppercase, strip separators
package sanitizer
