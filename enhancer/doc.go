// Package enhancer turns a free-text prompt into a structured record made of
// a context sentence, the original problem text, a synthesized expected
// solution and an output format label.
//
// Classification is purely rule based: every detector scans a lowercased copy
// of the prompt against fixed, ordered keyword tables. Nothing in this package
// performs I/O or keeps state, so all functions are safe for concurrent use.
//
// Basic usage:
//
//	if err := enhancer.Validate(prompt); err != nil {
//	    return err
//	}
//	result := enhancer.Transform(prompt)
package enhancer
