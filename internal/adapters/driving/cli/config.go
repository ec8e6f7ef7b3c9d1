package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	Long: `Settings live in config.toml in the configuration directory
(~/.quarry by default). API keys fall back to the REDUCTO_API_KEY and
OPENAI_API_KEY environment variables, which may also be set in a .env file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Stores a single setting. When the value of an API key is omitted it is
read from the terminal without echo.

Examples:
  quarry config set parser.backend local
  quarry config set search.limit 8
  quarry config set llm.api_key`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	values := settingsService.Keys()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	section := ""
	for _, k := range keys {
		group, name, _ := strings.Cut(k, ".")
		if group != section {
			if section != "" {
				cmd.Println()
			}
			cmd.Println(headingStyle.Render("[" + group + "]"))
			section = group
		}
		v := values[k]
		if v == "" {
			v = mutedStyle.Render("(not set)")
		}
		cmd.Printf("  %s = %s\n", name, v)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		if !strings.HasSuffix(key, "api_key") {
			return fmt.Errorf("missing value for %s", key)
		}
		cmd.Printf("%s: ", key)
		value = readSecret(cmd.InOrStdin())
		cmd.Println()
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if strings.HasSuffix(key, "api_key") {
		cmd.Printf("Set %s.\n", key)
	} else {
		cmd.Printf("Set %s = %s.\n", key, value)
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}
