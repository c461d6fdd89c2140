package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

var subjectFlag string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a subject as a user",
	Long: `Registers an identity provider subject so it can be added to groups.

Example:
  lumenapi users create --subject 6f1c2a34-8d1e-4c55-9a0b-2f7e1d3c4b5a
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc iam.Service) error {
			return CreateUser(ctx, svc, subjectFlag, os.Stdout)
		})
	},
}

// CreateUser registers subject. An existing registration is reported, not failed.
func CreateUser(ctx context.Context, svc iam.Service, subject string, out io.Writer) error {
	user, err := svc.CreateUser(ctx, iam.UserInput{SubjectID: subject})
	if errors.Is(err, repository.ErrConflict) {
		fmt.Fprintf(out, "User '%s' already registered\n", subject)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(out, "✓ Registered user '%s' (id %d)\n", user.SubjectID, user.ID)
	return nil
}
