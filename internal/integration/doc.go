// Package integration holds tests that start real Postgres and RabbitMQ
// containers. Run with -tags integration.
package integration
