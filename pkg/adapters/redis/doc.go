// Package redis provides a Redis-backed session store and distributed locker.
package redis
