// Package logic parses preprocessor conditions and turns them into
// propositional formulas.
//
// A condition goes through three stages:
//
//	Parse      text to Node, following the C grammar of #if expressions
//	Translate  Node to Formula; defined(X) and bare identifiers become
//	           variables supplied by a Resolver, constant parts are folded
//	           and everything else becomes an opaque atom
//	Encoder    Formula to clauses (Tseitin) for a SAT solver
//
// Opaque atoms are named __OPAQUE_<n>; two occurrences of the same
// sub-expression text share one atom.
package logic
