package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"verdict-engine/internal/registry"
)

var activateCmd = &cobra.Command{
	Use:   "activate <version>",
	Short: "Point the ACTIVE artifact at an existing version",
	Long: `Rewrites the ACTIVE pointer file to an already-promoted version.
The switch is a temp-file rename, so a serving process reloading
mid-switch sees either the old or the new version, never a torn state.

Meant for manual rollback and roll-forward; normal promotion happens
inside 'trainer train'.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivate,
}

func init() {
	rootCmd.AddCommand(activateCmd)
}

func runActivate(cmd *cobra.Command, args []string) error {
	raw := strings.TrimPrefix(args[0], "v")
	version, err := strconv.Atoi(raw)
	if err != nil || version <= 0 {
		return fmt.Errorf("invalid version %q, expected a positive number like 3 or v3", args[0])
	}

	store := registry.NewStore(artifactsDir)
	if err := store.Activate(version); err != nil {
		if versions, verr := store.Versions(); verr == nil && len(versions) > 0 {
			return fmt.Errorf("%w (available: %v)", err, versions)
		}
		return err
	}
	fmt.Printf("ACTIVE now points at v%d\n", version)
	return nil
}
