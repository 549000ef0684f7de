// Package client talks to a goBankID HTTP server.
//
// [Client] implements goBankID.OrderService, so a goBankID.Poller can drive a
// login attempt running on a remote server exactly as it drives an
// in-process engine. Server errors are mapped back onto the goBankID
// sentinel errors and can be tested with errors.Is.
package client
