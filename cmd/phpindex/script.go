package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/phpindex/internal/runtime"
)

func newScriptCmd(a *app) *cobra.Command {
	var scriptsDir string
	cmd := &cobra.Command{
		Use:   "script <file.risor>",
		Short: "Run a Risor script against the index",
		Long:  "Runs a Risor script with the parsing and index globals. Script imports resolve against --scripts-dir, which defaults to the script's directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.projectRoot(nil)
			if err != nil {
				return err
			}
			e, _, err := a.openEngine(root)
			if err != nil {
				return err
			}
			defer e.Close()

			script, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			dir := scriptsDir
			if dir == "" {
				dir = filepath.Dir(script)
			}
			rt := runtime.NewRuntime(e.Storage(), dir,
				runtime.WithOutput(a.out),
				runtime.WithLogger(a.logger("script")),
			)
			return rt.RunScript(commandContext(cmd), script, nil)
		},
	}
	cmd.Flags().StringVar(&scriptsDir, "scripts-dir", "", "directory script imports resolve against")
	return cmd
}
