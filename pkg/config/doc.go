// Package config loads typed configuration from the environment.
//
// Struct fields are annotated with `env` / `envDefault` tags understood by
// github.com/caarlos0/env/v11. A `.env` file in the working directory is read
// once through github.com/joho/godotenv before the first parse; real
// environment variables always win over the file.
//
// Load caches the parsed value per type so every component of a process sees
// the same configuration. Parse skips the cache and is what tests use.
//
//	var cfg ssokit.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
