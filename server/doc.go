/*
	Package server loads the catvol TOML configuration and serves the HTTP API.

	All stack-scoped routes live under /api/{project}/{stack}/.  JSON errors have the
	form {"error": "..."} with status 400 for invalid requests, 404 for missing data,
	409 for suspected hierarchy cycles, 207 for partially applied batches and 500 for
	storage failures.
*/
package server
