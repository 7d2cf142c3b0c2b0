// Package storage provides journal storage backends: a SQLite backend for
// persistence and an in-memory backend for tests.
package storage
