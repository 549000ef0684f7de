// Package httpapi exposes a goBankID engine over HTTP.
//
// Routes:
//
//	POST   /v1/login/identify          begin an order
//	GET    /v1/login/status?orderRef=  poll an order once
//	POST   /v1/logout                  destroy the caller's session
//	GET    /v1/session                 describe the caller's session (guarded)
//	DELETE /v1/login/orders/{orderRef} delete the persisted begin response (session of that order only)
//	GET    /healthz
//	GET    /metrics                    when a metrics handler is configured
//
// Every route is rate limited per client address and wrapped in request
// logging. Order state lives in the engine; handlers are stateless.
package httpapi
