// Package internal runs the dead block analysis on C sources.
//
// The Engine scans a file into its preprocessor directives, builds the
// conditional block tree and encodes it as a propositional formula:
//
//	B00
//	Bn <-> (Bparent && cond(Bn) && !Bprev1 && ... && !BprevK)
//	SYM.k <-> (Bk || SYM.(k-1))      for the k-th #define of SYM
//	SYM.k <-> (!Bk && SYM.(k-1))     for the k-th #undef of SYM
//
// Every block is then checked twice, on the code formula alone and
// together with the configuration model:
//
// code-dead: the block can never be selected by the code.
//
// kconfig-dead: the code allows the block but the model does not.
//
// missing: the block is kconfig-dead only because it needs configuration
// symbols the model does not contain.
//
// code-undead, kconfig-undead: the block is selected whenever its parent
// is.
//
// Blocks whose queries run out of time are marked unknown and never
// reported.
package internal
