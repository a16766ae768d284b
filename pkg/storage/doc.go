// Package storage is the key/value adapter the client SDK persists session
// material through.
//
// Every backend satisfies Storage. Memory is process-local, sqlite.Store is
// the persistent general store, Secure seals values before handing them to
// another Storage, and Split routes each key to a secure or a general backend
// by the key's name (see IsSensitiveKey).
package storage
