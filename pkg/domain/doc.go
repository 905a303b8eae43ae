/*
Package domain contains the core types shared by every session storage backend.

It is kept free of I/O so adapters, middleware and callers can agree on the same
vocabulary without importing each other.

# Key Entities

  - Record: a session payload and its last write time.
  - Cutoff: the inclusive age boundary used by garbage collection.
  - StorageError: a medium failure tagged with the operation that caused it.
*/
package domain
