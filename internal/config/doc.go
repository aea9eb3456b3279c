// Package config provides 12-factor configuration management for the agent.
//
// Configuration is loaded from SCOUT_* environment variables with sensible
// defaults, so a host process can embed the agent without any setup at all.
//
// Configuration Sections:
//   - Core: monitor toggle, application name, application root path
//   - Tracking: ignored URL paths, N+1 detection threshold, backtrace policy
//   - Logging: log level and output format
package config
