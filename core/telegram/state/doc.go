// Package state keeps per-user conversation sessions in process memory.
// Sessions carry a step name plus a typed draft and are not meant to survive a restart.
package state
