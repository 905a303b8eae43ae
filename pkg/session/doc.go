/*
Package session holds the caller-side helpers around a ports.StorageProvider.

Providers only offer a non-blocking lock. Acquire and WithLock turn it into a wait by
polling until the lock is granted or the context ends. Sweeper runs ClearOld on a
schedule so stale sessions are evicted without an external cron.
*/
package session
