package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage application passwords",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to store in auth.users[].password_hash",
		Long: `Hashes an application password. Spaces are ignored, so the grouped form
shown by WordPress ("abcd efgh ijkl") can be pasted as is. Without an argument
the password is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}
