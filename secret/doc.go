// Package secret resolves credentials referenced from ontologyd
// configuration before they are used to dial backing stores.
//
// Connection settings (Postgres DSN, Redis address, NATS URL, audit
// service URL) may contain:
//   - ${VAR} environment references, expanded strictly (a missing
//     variable is an error, not an empty string) — see ExpandEnvStrict
//   - secretref:<provider>:<ref> references resolved through a
//     registered Provider, either as the whole value or inline within
//     a larger string
//
// Providers are registered on a Resolver. The built-in FileProvider
// reads refs as file names under a fixed directory, which covers the
// common case of secrets mounted into the container filesystem.
package secret
