// Command policactl is the operator CLI for a polica server.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erazemk/polica/internal/client"
)

type app struct {
	server    string
	tokenFile string
	api       *client.Client
}

func main() {
	a := &app{}
	root := a.rootCmd()
	if err := root.Execute(); err != nil {
		if errors.Is(err, client.ErrSessionInvalid) {
			fmt.Fprintln(os.Stderr, "error: session ended, run `policactl login`")
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "policactl",
		Short:         "Manage shelves, copies and lendings on a polica server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.tokenFile == "" {
				path, err := defaultTokenFile()
				if err != nil {
					return err
				}
				a.tokenFile = path
			}
			a.api = client.New(a.server, client.WithToken(a.loadToken()))
			return nil
		},
	}

	server := os.Getenv("POLICA_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVarP(&a.server, "server", "s", server, "server URL (env POLICA_SERVER)")
	root.PersistentFlags().StringVar(&a.tokenFile, "token-file", "", "where the session token is kept")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.passwdCmd(),
		a.shelvesCmd(),
		a.freeCmd(),
		a.addSlotsCmd(),
		a.stockCmd(),
		a.copiesCmd(),
		a.statusCmd(),
		a.moveCmd(),
		a.lendCmd(),
		a.returnCmd(),
		a.lendingsCmd(),
		a.overdueCmd(),
	)
	return root
}

func defaultTokenFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "policactl", "token"), nil
}

// loadToken prefers POLICA_TOKEN over the token file.
func (a *app) loadToken() string {
	if t := os.Getenv("POLICA_TOKEN"); t != "" {
		return t
	}
	data, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (a *app) saveToken(token string) error {
	if token == "" {
		if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing token: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(a.tokenFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}
