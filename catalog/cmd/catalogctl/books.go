package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/service"
)

func newBooksCmd() *cobra.Command {
	books := &cobra.Command{
		Use:   "books",
		Short: "List, create, delete, borrow and return books",
	}

	books.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all books by serial number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				list, err := svc.ListBooks(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	})

	books.AddCommand(&cobra.Command{
		Use:   "get SERIAL",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				book, err := svc.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	})

	books.AddCommand(&cobra.Command{
		Use:   "create SERIAL TITLE AUTHOR",
		Short: "Add a book to the catalog",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				book, err := svc.CreateBook(ctx, model.CreateBookRequest{SerialNumber: args[0], Title: args[1], Author: args[2]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	})

	books.AddCommand(&cobra.Command{
		Use:   "delete SERIAL",
		Short: "Remove a book, borrowed or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.DeleteBook(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("book %s deleted\n", args[0])
				return nil
			})
		},
	})

	var at string
	borrow := &cobra.Command{
		Use:   "borrow SERIAL CARD",
		Short: "Lend a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.TransitionRequest{IsBorrowed: model.Some(true), BorrowedBy: model.Some(args[1])}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return err
				}
				req.BorrowedAt = model.Some(t)
			}
			return applyTransition(cmd, args[0], req)
		},
	}
	borrow.Flags().StringVar(&at, "at", "", "borrow time, RFC 3339 (default now)")
	books.AddCommand(borrow)

	books.AddCommand(&cobra.Command{
		Use:   "return SERIAL",
		Short: "Mark a book as returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyTransition(cmd, args[0], model.TransitionRequest{IsBorrowed: model.Some(false)})
		},
	})

	return books
}

func applyTransition(cmd *cobra.Command, serial string, req model.TransitionRequest) error {
	return withService(cmd, func(ctx context.Context, svc *service.Service) error {
		book, err := svc.ApplyTransition(ctx, serial, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), book)
	})
}
