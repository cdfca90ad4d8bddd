package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"taskflow/internal/config"
	"taskflow/internal/permission"
	"taskflow/internal/server"
	"taskflow/internal/service"

	"github.com/spf13/cobra"
)

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts directly in the database",
	}
	cmd.AddCommand(newUserCreateCmd(opts))
	return cmd
}

func newUserCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		name          string
		role          string
		department    string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account with any role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}
			parsedRole, err := permission.ParseRole(role)
			if err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), cfg, func(services *server.Services) error {
				user, err := services.User.Create(cmd.Context(), service.NewUser{
					Name:       name,
					Email:      args[0],
					Password:   password,
					Role:       parsedRole,
					Department: department,
				})
				if err != nil {
					return fmt.Errorf("%s", service.Message(err))
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role.DisplayName(), user.Email, user.ID.Hex())
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email's local part)")
	cmd.Flags().StringVar(&role, "role", string(permission.RoleTeamMember), "role: ceo, projectManager, hr or teamMember")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimSpace(line)
	if password == "" {
		return "", fmt.Errorf("password is required on stdin")
	}
	return password, nil
}

// withServices connects to MongoDB for the duration of fn.
func withServices(ctx context.Context, cfg *config.Config, fn func(*server.Services) error) error {
	client, err := server.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	repos := server.InitRepositories(client.Database(cfg.Mongo.Database))
	if err := server.EnsureIndexes(ctx, repos); err != nil {
		return err
	}
	return fn(server.InitServices(cfg, repos))
}
