package iam

import (
	"github.com/spf13/cobra"
)

// IamCmd is the parent command for iam operations
var IamCmd = &cobra.Command{
	Use:   "iam",
	Short: "Manage groups, group roles and memberships",
	Long:  `Operator commands that write group and membership data directly to the database.`,
}

func init() {
	IamCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().StringVar(&groupName, "group", "", "Group name to create or reuse")
	bootstrapCmd.Flags().StringVar(&groupDescription, "description", "", "Group description (used when the group is created)")
	bootstrapCmd.Flags().StringSliceVar(&subjectsInput, "subject", []string{}, "Subject id(s) to register and add to the group")
	bootstrapCmd.Flags().StringSliceVar(&rolesInput, "role", []string{}, "Role name(s) to attach to the group")
	bootstrapCmd.Flags().BoolVar(&allRoles, "all-roles", false, "Attach every catalog role to the group")
	_ = bootstrapCmd.MarkFlagRequired("group")
}
