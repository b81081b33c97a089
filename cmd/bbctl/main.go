// bbctl inspects burst buffer staging directives: it translates a job
// script's #LOD comment block, validates it the way the controller would
// at submission, and prints the parsed staging options.
package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	logLevel := ""
	rootCmd := &cobra.Command{
		Use:   "bbctl",
		Short: "Inspect burst buffer staging directives",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Log everything at this level and above")

	rootCmd.AddCommand((&parseCmd{}).register())
	rootCmd.AddCommand((&lintCmd{}).register())

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// readScript loads the job script from a path, or stdin for "-".
func readScript(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
