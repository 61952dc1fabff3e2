// Package ident defines the 256-bit promise identifier and its
// deterministic derivation rules.
//
// Identifiers are content-addressed: the same inputs produce the same
// id on every environment. This is what lets a caller chain onto a
// remote promise that does not exist yet - both sides compute the same
// id independently.
package ident
