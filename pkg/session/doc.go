/*
Package session implements session management and persistence orchestration.

A Manager serializes access to named session documents, optionally across
processes through a ports.DistributedLocker. A Storage is a write-through
handle on one open session: data updates and command results are appended to
the document and saved immediately.
*/
package session
