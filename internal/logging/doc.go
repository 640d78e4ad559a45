// Package logging wraps log/slog with the structured conventions used across
// caseflow: standardized field keys, context-derived attributes, and the
// console/JSON handler selection driven by configuration.
//
// All packages log through *slog.Logger values constructed here; handlers and
// field names should not be assembled ad hoc elsewhere.
package logging
