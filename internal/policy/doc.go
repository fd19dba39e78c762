// Package policy implements the cluster policy constraint model.
//
// The package covers:
//   - the attribute catalog (which constraint modes each attribute supports)
//   - the constraint builder (raw user input to a validated Constraint)
//   - policy definitions (attribute name to Constraint, with replace semantics)
//   - family override resolution (overrides layered over a family definition)
//   - the editor, an immutable value holding the draft and the pending edit
//
// Nothing in this package talks to the network. Option lists for enumerated
// attributes are obtained through the OptionSource interface.
package policy
