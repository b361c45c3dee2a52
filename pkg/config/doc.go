// Package config loads environment variables into typed structs.
//
// Struct fields are described with caarlos0/env tags. A .env file in the
// working directory is read once per process when present; variables already
// set in the environment take precedence over it.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	cfg, err := config.Parse[Config]()
package config
