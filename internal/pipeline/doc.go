// Package pipeline executes the two-phase middleware protocol for a single
// request.
//
// # Protocol
//
// A run moves through four states:
//   - entering: each middleware's Enter step runs in order. A response
//     stops entering; scope entries are bound and entering continues.
//   - handling: the handler runs unless entering already produced a
//     response.
//   - leaving: every middleware that entered is left in reverse order. A
//     response from a leave step replaces the current one.
//   - done: the last response set is the result.
//
// # Step results
//
// A step returns one of:
//
//	*httpmsg.Response   // becomes the current response, bound as "response"
//	di.Entry            // bound in the request scope
//	[]di.Entry          // each bound in order
//	nil                 // no effect
//
// Any other value fails the run with *InvalidStageResultError.
package pipeline
