package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid client credentials")

// Register creates a client and returns it with its plaintext secret, which
// is not stored and cannot be recovered later.
func Register(ctx context.Context, repo *Repo, name string) (*Client, string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 64 {
		return nil, "", fmt.Errorf("client name must be 3-64 chars")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash secret: %w", err)
	}

	c := Client{ID: uuid.NewString(), Name: name, SecretHash: string(hash)}
	if err := repo.CreateClient(ctx, c); err != nil {
		return nil, "", err
	}
	return &c, secret, nil
}

// Authenticate checks a client id and secret pair.
func Authenticate(ctx context.Context, repo *Repo, id, secret string) (*Client, error) {
	id = strings.TrimSpace(id)
	if id == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Disabled {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}
