package internal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hydrogit [flags] <repo-url> <version> <version>...",
	Short: "hydrogit builds versions of a repository and compares them",
	Long: `hydrogit clones a CMake repository, builds each requested version to a
single linked LLVM bitcode file and hands the bitcode and sources of all
versions to the Hydrogen comparator. Versions are any git refs; the first
is the baseline.`,
	Args:          cobra.MinimumNArgs(3),
	RunE:          runCompare,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCode is the status Execute returns after a successful run.
var exitCode int

// Execute runs the root command and returns the process exit status: the
// comparator's exit code, or 1 if hydrogit itself failed.
func Execute() int {
	exitCode = 0
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hydrogit:", err)
		return 1
	}
	return exitCode
}
