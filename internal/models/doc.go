// package models defines the data model for the job synchronization engine.
//
// Values in this package are immutable snapshots exchanged between the backend
// client and the engine's cache. A merge never mutates in place: it returns a
// new value combining the cached copy with an incoming (possibly partial)
// update under well-defined field precedence rules.
package models
