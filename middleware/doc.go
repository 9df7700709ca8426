// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.PlaceBidRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Failure Codes

Domain failures carry a machine-readable code from the closed set in
models/codes.go:

	middleware.FailResponse(w, http.StatusConflict, models.CodeAlreadyFinalized,
		"auction day is already finalized")

ErrorResponse is for transport-level problems (bad JSON, database
errors); FailResponse is for auction rule violations a client is
expected to branch on.
*/
package middleware
