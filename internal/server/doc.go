// Package server wires the upload server together.
//
// Routes:
//
//	GET  /            upload form, with the client's last upload
//	PUT  /            raw upload from the widget (File-Name header)
//	POST /            multipart upload from the plain form
//	GET  /last        last upload of this client as JSON
//	GET  /live        websocket feed of stored uploads
//	GET  /metrics     Prometheus metrics
//	GET  /uploads/*   stored files, under storage.prefix
//
// The last upload is kept in a signed cookie session. Every request is
// logged, traced and counted by the middleware in pkg/middleware.
package server
