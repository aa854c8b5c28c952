package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Maruda-Patryk/api-library/catalog/internal/service"
)

func newMembersCmd() *cobra.Command {
	members := &cobra.Command{
		Use:   "members",
		Short: "Look up library members",
	}
	members.AddCommand(&cobra.Command{
		Use:   "get CARD",
		Short: "Show a member as it appears on borrowed books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				m, err := svc.GetMember(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), m)
			})
		},
	})
	return members
}
