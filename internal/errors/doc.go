// Package errors provides coded, actionable errors for fotbroms.
//
// Every error that crosses a package boundary towards an operator (setup
// failures, configuration problems, server-side rejections) carries a code
// from the registry:
//
//   - U0xx: upload area setup
//   - S0xx: upload server
//   - C0xx: configuration
//
// # Usage
//
//	err := errors.New("U001").
//	    WithDetail("element <upload-area> has no <form> ancestor").
//	    Wrap(uploadarea.ErrNoForm)
//
//	fmt.Fprint(os.Stderr, err.Format())
//
// Codes never change meaning once published; add new ones instead.
package errors
