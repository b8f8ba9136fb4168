// Package admin implements maintenance operations on the credential store
// for operators: listing, export/import, renames, password resets and
// deletions.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/server/auth"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

var ErrEmptyPassword = errors.New("password must not be empty")

type Admin struct {
	repo   credentials.Repository
	hasher auth.Hasher
	out    io.Writer
}

func New(repo credentials.Repository, hasher auth.Hasher, out io.Writer) *Admin {
	return &Admin{repo: repo, hasher: hasher, out: out}
}

// List prints user id and username of every credential, sorted by user id.
// Password hashes are never printed.
func (a *Admin) List(ctx context.Context) error {
	all, err := a.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tUSERNAME")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%s\n", id, all[id].Username)
	}
	return tw.Flush()
}

func (a *Admin) Show(ctx context.Context, userID string) error {
	c, err := a.get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "user id:  %s\nusername: %s\n", c.UserID, c.Username)
	return err
}

// Export writes all credentials, hashes included, to path as JSON.
func (a *Admin) Export(ctx context.Context, path string) error {
	all, err := a.repo.GetAll(ctx)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.out, "exported %d credentials to %s\n", len(all), path)
	return nil
}

// Import bulk-writes the credentials in path, overwriting records with the
// same user id. It is not safe to run while the bot is registering users.
func (a *Admin) Import(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}

	var creds map[string]*models.Credential
	if err := json.Unmarshal(b, &creds); err != nil {
		return fmt.Errorf("decode import: %w", err)
	}
	for id, c := range creds {
		if c == nil || c.PasswordHash == "" {
			return fmt.Errorf("import: record %q has no password hash", id)
		}
		// the map key wins over the embedded id
		c.UserID = id
	}

	if err := a.repo.PutAll(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d credentials\n", len(creds))
	return nil
}

func (a *Admin) Rename(ctx context.Context, userID, username string) error {
	c, err := a.get(ctx, userID)
	if err != nil {
		return err
	}
	c.Username = username
	if err := a.repo.Update(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "renamed %s to %s\n", userID, username)
	return nil
}

// Passwd replaces the stored hash with a hash of password.
func (a *Admin) Passwd(ctx context.Context, userID string, password []byte) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}
	c, err := a.get(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := a.hasher.Hash(string(password))
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	if err := a.repo.Update(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "password updated for %s\n", userID)
	return nil
}

func (a *Admin) Delete(ctx context.Context, userID string) error {
	if err := a.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", userID)
	return nil
}

func (a *Admin) get(ctx context.Context, userID string) (*models.Credential, error) {
	c, err := a.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, err)
		}
		return nil, err
	}
	return c, nil
}
