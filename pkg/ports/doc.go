/*
Package ports defines the storage contract every session backend implements.

The interfaces here decouple callers from the medium: the in-memory reference
implementation, the filesystem store and the Redis store are interchangeable.

# Key Interfaces

  - StorageProvider: save/get/exists, advisory lock/unlock, destroy and age-based clearOld.
  - Sweeper: optional extension reporting how many records a sweep removed.

RunStorageProviderContract is the shared test suite each adapter runs against itself.
*/
package ports
