package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedUser is one bootstrap principal.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SeedFile is the document read by LoadSeedFile.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeedFile reads a yaml seed document from path.
func LoadSeedFile(path string) (SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("auth: open seed file: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// DecodeSeed parses a yaml seed document. Unknown keys are rejected.
func DecodeSeed(r io.Reader) (SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return SeedFile{}, fmt.Errorf("auth: decode seed file: %w", err)
	}
	return sf, nil
}

// Seed registers every user in sf that does not exist yet and returns the
// number created. Existing usernames are left untouched.
func (s *Service) Seed(ctx context.Context, sf SeedFile) (int, error) {
	created := 0
	for _, u := range sf.Users {
		role, err := ParseRole(u.Role)
		if err != nil {
			return created, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		_, err = s.Register(ctx, role, Credentials{Username: u.Username, Password: u.Password})
		switch {
		case errors.Is(err, ErrUsernameTaken):
			s.logger.Debug("seed user exists", slog.String("username", u.Username))
		case err != nil:
			return created, fmt.Errorf("seed user %q: %w", u.Username, err)
		default:
			created++
		}
	}
	return created, nil
}
