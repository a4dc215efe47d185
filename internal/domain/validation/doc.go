// Package validation checks action call arguments against an action's
// declared parameter signature before the call is dispatched to a container.
//
// The check runs in three stages and stops at the first failure:
//  1. every required parameter has an argument (presence is by key, not value)
//  2. every argument names a declared parameter (no extra keys)
//  3. every argument matches its declared type, recursively for lists
//
// Type dispatch uses the literal type tag. A tag starting with "List" or
// "Array" is a collection, a known primitive tag is a primitive, and anything
// else is an object type looked up in the schema registry. A collection
// without an items declaration is a broken signature, reported as such and
// never satisfiable.
//
// IsValid answers with a boolean only. Check returns the first failure with
// its path and reason for callers that need diagnostics.
package validation
