// Package config centralizes typed configuration for the double opt-in
// service.
//
// Structs carry env/env-default tags so cmd mains can load them with
// cleanenv, and every struct also has a NewXxxFromEnv constructor built on
// the GetEnv helper family for callers that assemble configuration by hand.
//
// All verification policy defaults (method, expiries, OTP shape, resend
// limits, retention) live in VerificationConfig. Downstream packages take
// the resolved values; they never consult the environment themselves.
package config
