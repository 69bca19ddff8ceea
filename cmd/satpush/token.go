package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/satpush/internal/auth"
	"github.com/nerrad567/satpush/internal/infrastructure/config"
)

// runToken implements "satpush token [-ttl 24h] <subject>". It signs an
// API bearer token with api.auth.secret and prints it to out.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", 0, "token lifetime (default api.auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}
	if fs.NArg() != 1 {
		return errors.New("usage: satpush token [-ttl 24h] <subject>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.Secret == "" {
		return errors.New("api.auth.secret is not set (set SATPUSH_API_AUTH_SECRET environment variable)")
	}

	lifetime := cfg.API.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.IssueToken(fs.Arg(0), cfg.API.Auth.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
