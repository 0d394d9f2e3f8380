// Package ratelimit throttles the unauthenticated auth endpoints per client
// IP using fixed-window Redis counters.
//
// Each (scope, client IP) pair gets a counter that expires one window after
// its first hit. Requests beyond the limit inside a window are refused with
// ErrRateLimited. The account lockout in package auth protects individual
// accounts; this limiter protects the service from one source hammering
// many accounts.
//
// When Redis is unreachable Allow returns ErrRedisUnavailable and the HTTP
// layer lets the request through.
package ratelimit
