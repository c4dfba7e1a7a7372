// Package predicate provides the equality and validation functions the reactive layer
// is configured with.
//
// DeepEqual is the default Equaler. Validators are plain functions, so any Go code can
// be used; for rules that come from configuration or the command line the package
// compiles them from one of four rule languages into a Check:
//
//   - cue:  a CUE schema the value must unify with, e.g. {count: number}
//   - expr: an expr-lang boolean expression, e.g. count >= 0
//   - cel:  a CEL boolean expression over value, e.g. value.count >= 0
//   - js:   a JavaScript expression evaluated for truthiness, e.g. value.count >= 0
//
// Checks see the value in its JSON document form. Expression languages get the whole
// document as value and, for objects, each top level field under its own name.
// FromCheck turns a Check into a typed Validator; evaluation errors count as invalid.
package predicate
