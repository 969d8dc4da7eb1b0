// Package api implements the HTTP client for the messaging server's
// persistence and key-storage boundary: key registration, room
// create-or-fetch, envelope history, the durable outbox write, and
// read receipts. The server only ever sees ciphertext and wrapped keys;
// nothing in this package handles plaintext message content.
package api
