// package backend implements the client side of the job backend contract:
// a typed REST client for point-in-time snapshots and commands, websocket
// event channels for push updates, and the backend-availability signal that
// gates all of it.
//
// The package only consumes the documented contract; it never owns job state.
package backend
