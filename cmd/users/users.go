package users

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenforge/lumenforge/cmd/cmdutil"
	"github.com/lumenforge/lumenforge/internal/config"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage registered identity provider subjects",
	Long:  `Commands that read and register users directly against the database, bypassing the HTTP API.`,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a registered user and the roles its groups grant",
	Long: `Prints the stored user row and the roles resolved from group memberships.
Realm roles from the identity provider are not consulted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc iam.Service) error {
			return ShowUser(ctx, svc, subjectFlag, os.Stdout)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{createCmd, showCmd} {
		c.Flags().StringVar(&subjectFlag, "subject", "", "Identity provider subject id (sub claim)")
		_ = c.MarkFlagRequired("subject")
		UsersCmd.AddCommand(c)
	}
}

func withService(fn func(ctx context.Context, svc iam.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	bundle, err := cmdutil.NewIAMServiceBundle(cfg)
	if err != nil {
		return err
	}
	defer bundle.Close()

	return fn(context.Background(), bundle.Service)
}

// ShowUser prints the user and its database-resolved roles.
func ShowUser(ctx context.Context, svc iam.Service, subject string, out io.Writer) error {
	user, err := svc.GetUser(ctx, subject)
	if err != nil {
		return err
	}
	roles, err := svc.GetRoles(ctx, subject)
	if err != nil {
		return fmt.Errorf("resolve roles: %w", err)
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	rolesLine := "(none)"
	if len(names) > 0 {
		rolesLine = strings.Join(names, ", ")
	}

	fmt.Fprintf(out, "Subject: %s\n", user.SubjectID)
	fmt.Fprintf(out, "ID:      %d\n", user.ID)
	fmt.Fprintf(out, "Joined:  %s\n", user.JoinedAt.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintf(out, "Roles:   %s\n", rolesLine)
	return nil
}
