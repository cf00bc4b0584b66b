// Package config loads the load balancer configuration from a YAML file and
// environment variables using viper, applies defaults, and validates the
// result. The configuration is read once at startup and never reloaded.
package config
