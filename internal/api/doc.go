// Package api provides the HTTP REST API for RBAC Core.
//
// Every response uses the same JSON envelope:
//
//	{"success": true, "statusCode": 200, "message": "...", "data": ..., "errors": null, "timeStamp": "..."}
//
// Routes:
//
//	GET  /api/health                  liveness + database ping
//	GET  /api/metrics                 runtime and pool statistics
//	POST /api/auth/signup             rate limited
//	POST /api/auth/signin             rate limited, sets the refresh token cookie
//	POST /api/auth/refresh            rotates the refresh token cookie
//	POST /api/auth/signout            bearer token
//	POST /api/auth/signout-all        bearer token
//	GET  /api/auth/me                 bearer token
//	GET  /api/roles                   roles:read
//	GET  /api/roles/{id}/permissions  roles:read
//	GET  /api/audit                   audit:read
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
