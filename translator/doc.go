// Package translator rewrites programs between the two surface syntaxes.
//
// The translator is a line-oriented structural rewriter, not a full
// parser. Input is tokenized into logical lines (blank lines dropped),
// each line is classified against a small fixed grammar of headers
// (function, if/elif/else, for, while) plus comments and terminators, and
// re-emitted in the target syntax's block-delimiter convention: explicit
// "->" headers closed by a terminator line on the JAC side, trailing ":"
// plus indentation on the PY side. Block nesting depth is tracked as
// first-class state.
//
// Unrecognized lines are passed through with re-indentation only. That
// can yield invalid target code for constructs outside the recognized
// grammar, which is surfaced as a warning, not an error: the translator's
// job is structural best-effort, not compilation. Input whose nesting
// cannot be determined (a missing terminator, an inconsistent indent)
// fails with a descriptive error and whatever partial output was produced
// up to that point.
//
// Translate is referentially transparent: no side effects, ever.
package translator
