// Package handlers implements the HTTP handlers for the bastion API:
// connection evaluation, policy CRUD and health. Request validation
// happens here at the edge; domain errors map to 404, 409, 422 or 500
// with a JSON {"detail": ...} body.
package handlers
