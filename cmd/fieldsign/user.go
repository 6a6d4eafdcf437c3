package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldsign/internal/auth"
	"fieldsign/internal/config"
	"fieldsign/internal/store"
)

func newUserCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage provisioned worker accounts",
	}
	cmd.AddCommand(newUserAddCmd(cfg))
	cmd.AddCommand(newUserListCmd(cfg))
	cmd.AddCommand(newUserSetTierCmd(cfg))
	return cmd
}

func withStore(cfg *config.Config, fn func(st *store.Store) error) error {
	if cfg == nil || cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func newUserAddCmd(cfg *config.Config) *cobra.Command {
	var passwordStdin bool
	var tier string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one worker account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}

			username, err := auth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}

			passwordBytes, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(strings.TrimSpace(string(passwordBytes)))
			if err != nil {
				return err
			}

			if tier == "" {
				tier = cfg.DefaultTier
			}

			return withStore(cfg, func(st *store.Store) error {
				user, err := st.CreateUser(cmd.Context(), username, hash, tier, time.Now().UTC())
				if err != nil {
					if store.IsUniqueConstraint(err) {
						return fmt.Errorf("username %s already exists", username)
					}
					return err
				}
				fmt.Printf("created worker %s (%s, tier %s)\n", user.Username, user.ID, user.Tier)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().StringVar(&tier, "tier", "", "subscription tier (default from config)")
	return cmd
}

func newUserListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provisioned worker accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(st *store.Store) error {
				users, err := st.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if len(users) == 0 {
					fmt.Println("no workers provisioned")
					return nil
				}
				fmt.Println("USERNAME\tTIER\tSTATUS\tID")
				for _, user := range users {
					status := "enabled"
					if user.Disabled {
						status = "disabled"
					}
					fmt.Printf("%s\t%s\t%s\t%s\n", user.Username, user.Tier, status, user.ID)
				}
				return nil
			})
		},
	}
}

func newUserSetTierCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set-tier <username> <tier>",
		Short: "Change a worker's subscription tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := auth.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			tier := strings.TrimSpace(args[1])
			if tier == "" {
				return fmt.Errorf("tier is required")
			}

			return withStore(cfg, func(st *store.Store) error {
				user, err := st.GetUserByUsername(cmd.Context(), username)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("unknown worker: %s", username)
				}
				if err := st.UpdateUserTier(cmd.Context(), user.ID, tier, time.Now().UTC()); err != nil {
					return err
				}
				fmt.Printf("worker %s moved to tier %s\n", username, tier)
				return nil
			})
		},
	}
}
