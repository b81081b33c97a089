package main

import (
	"errors"
	"fmt"

	"github.com/luci/go-render/render"
	"github.com/spf13/cobra"

	"github.com/KnightKu/slurm/bb"
	"github.com/KnightKu/slurm/bb/directive"
)

type parseCmd struct {
	confPath string
}

func (c *parseCmd) register() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <script>",
		Short: "Translate, validate and print a script's staging directives",
		RunE:  c.run,
	}
	cmd.Flags().StringVar(&c.confPath, "conf", bb.DefaultConfPath, "Default tool configuration path")
	return cmd
}

func (c *parseCmd) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("a job script must be provided")
	}
	script, err := readScript(args[0])
	if err != nil {
		return err
	}

	block := directive.Translate(script)
	if block == "" {
		fmt.Println("no staging directives")
		return nil
	}
	if err := directive.Validate(block, directive.FileConfResource(c.confPath)); err != nil {
		return err
	}

	fmt.Println(block)
	if opts := directive.Parse(block); opts != nil {
		fmt.Println(render.Render(*opts))
	}
	return nil
}
