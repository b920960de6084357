// Package config loads authkit's process-wide configuration.
//
// Configuration is resolved once at boot from a YAML file plus an
// AUTHKIT_-prefixed environment overlay (.env files are honored) and
// is immutable afterwards; consumers receive it by injection rather
// than reading the environment ad hoc.
package config
