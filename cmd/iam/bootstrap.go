package iam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenforge/lumenforge/cmd/cmdutil"
	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/config"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

var (
	groupName        string
	groupDescription string
	subjectsInput    []string
	rolesInput       []string
	allRoles         bool
)

// bootstrapActor is recorded as the assigner of memberships created here.
const bootstrapActor = "lumenapi-bootstrap"

// BootstrapOptions describes the group to provision.
type BootstrapOptions struct {
	Group       string
	Description string
	Subjects    []string
	Roles       []string
	AllRoles    bool
}

// bootstrapCmd provisions a group with roles and members in one step
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a group, attach roles and enroll subjects",
	Long: `Provision a group with its roles and members directly in the database.

This is how the first administrators get access before anyone can call the
HTTP API. Re-running the command is safe: existing groups, roles, users and
memberships are reported and left alone.

Example:
  lumenapi iam bootstrap \
    --group "Platform Admins" \
    --description "Operators of the rental platform" \
    --subject 6f1c2a34-8d1e-4c55-9a0b-2f7e1d3c4b5a \
    --all-roles
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := BootstrapOptions{
			Group:       groupName,
			Description: groupDescription,
			Subjects:    subjectsInput,
			Roles:       rolesInput,
			AllRoles:    allRoles,
		}
		if err := opts.validate(); err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		bundle, err := cmdutil.NewIAMServiceBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		return Bootstrap(context.Background(), bundle.Service, opts, os.Stdout)
	},
}

func (o BootstrapOptions) validate() error {
	if o.Group == "" {
		return fmt.Errorf("--group is required")
	}
	if len(o.Roles) == 0 && !o.AllRoles && len(o.Subjects) == 0 {
		return fmt.Errorf("nothing to do: pass --role, --all-roles or --subject")
	}

	var invalid []string
	for _, name := range o.Roles {
		if _, err := auth.ParseRole(name); err != nil {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		valid := make([]string, 0, len(auth.AllRoles()))
		for _, role := range auth.AllRoles() {
			valid = append(valid, role.String())
		}
		return fmt.Errorf("invalid role(s): %s\nValid roles are: %s",
			strings.Join(invalid, ", "), strings.Join(valid, ", "))
	}
	return nil
}

// Bootstrap creates or reuses the group, attaches roles and enrolls subjects.
// Conflicts are reported on out and skipped.
func Bootstrap(ctx context.Context, svc iam.Service, opts BootstrapOptions, out io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	group, err := ensureGroup(ctx, svc, opts, out)
	if err != nil {
		return err
	}

	roleNames := opts.Roles
	if opts.AllRoles {
		roleNames = roleNames[:0:0]
		for _, role := range auth.AllRoles() {
			roleNames = append(roleNames, role.String())
		}
	}

	for _, name := range roleNames {
		err := svc.AssignRoleToGroup(ctx, group.GUID, name)
		switch {
		case errors.Is(err, repository.ErrConflict):
			fmt.Fprintf(out, "  Role '%s' already attached, skipping\n", name)
		case err != nil:
			return fmt.Errorf("failed to attach role '%s': %w", name, err)
		default:
			fmt.Fprintf(out, "✓ Attached role '%s'\n", name)
		}
	}

	for _, subject := range opts.Subjects {
		if _, err := svc.CreateUser(ctx, iam.UserInput{SubjectID: subject}); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("failed to register user '%s': %w", subject, err)
			}
			fmt.Fprintf(out, "  User '%s' already registered\n", subject)
		}

		_, err := svc.AssignUserToGroup(ctx, bootstrapActor, iam.MembershipInput{SubjectID: subject}, group.GUID)
		switch {
		case errors.Is(err, repository.ErrConflict):
			fmt.Fprintf(out, "  User '%s' already a member, skipping\n", subject)
		case err != nil:
			return fmt.Errorf("failed to add '%s' to group: %w", subject, err)
		default:
			fmt.Fprintf(out, "✓ Added user '%s'\n", subject)
		}
	}

	fmt.Fprintln(out, "✓ Bootstrap complete")
	fmt.Fprintf(out, "  Group: %s (%s)\n", group.Name, group.GUID)
	fmt.Fprintln(out, "\nRunning servers pick up the change for new tokens immediately and for")
	fmt.Fprintln(out, "existing tokens once their role cache entry expires.")
	return nil
}

func ensureGroup(ctx context.Context, svc iam.Service, opts BootstrapOptions, out io.Writer) (*models.Group, error) {
	groups, err := svc.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	for i := range groups {
		if groups[i].Name == opts.Group {
			fmt.Fprintf(out, "  Group '%s' exists, reusing\n", opts.Group)
			return &groups[i], nil
		}
	}

	description := opts.Description
	if description == "" {
		description = "Provisioned by lumenapi iam bootstrap"
	}
	group, err := svc.CreateGroup(ctx, iam.GroupInput{Name: opts.Group, Description: description})
	if err != nil {
		return nil, fmt.Errorf("failed to create group '%s': %w", opts.Group, err)
	}
	fmt.Fprintf(out, "✓ Created group '%s'\n", group.Name)
	return group, nil
}
