// Package ir provides the constrained value model and scenario types shared by
// the flowrt harness, compiler and store.
//
// This package imports nothing internal. Every other package that needs to
// describe a scenario or its payloads imports ir.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for content-addressed ids and rendered trace payloads
package ir
