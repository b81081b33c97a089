package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KnightKu/slurm/bb"
	"github.com/KnightKu/slurm/bb/directive"
)

type lintCmd struct {
	confPath string
}

func (c *lintCmd) register() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <script>",
		Short: "Validate a script's staging directives",
		RunE:  c.run,
	}
	cmd.Flags().StringVar(&c.confPath, "conf", bb.DefaultConfPath, "Default tool configuration path")
	return cmd
}

func (c *lintCmd) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("a job script must be provided")
	}
	script, err := readScript(args[0])
	if err != nil {
		return err
	}
	if err := directive.Validate(directive.Translate(script), directive.FileConfResource(c.confPath)); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}
