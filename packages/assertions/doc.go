// Package assertions provides the value comparisons behind the pm.test
// operators.
//
// It covers:
//   - Null-safe deep equality with numeric normalisation (Equal)
//   - String containment over arbitrary values (Contains)
//   - JSON path lookups into response bodies (ValueAt)
//   - JSON Schema validation (ValidateSchema)
//   - JSON-style type names (TypeOf)
package assertions
