package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paicode/internal/config"
)

var (
	configSetKey    string
	configShowKey   bool
	configRemoveKey bool
)

// configCmd manages the stored API credential.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stored API key",
	Long: `Stores, shows, or removes the Gemini API key.

The key is kept in ~/.config/pai/credentials with owner-only
permissions. The GEMINI_API_KEY environment variable, when set, takes
precedence over the stored key.

Examples:
  pai config --set AIzaSy...
  pai config --show
  pai config --remove`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&configSetKey, "set", "", "store an API key")
	configCmd.Flags().BoolVar(&configShowKey, "show", false, "show the stored API key (masked)")
	configCmd.Flags().BoolVar(&configRemoveKey, "remove", false, "remove the stored API key")
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch {
	case configSetKey != "":
		if err := config.SaveAPIKey(configSetKey); err != nil {
			return err
		}
		path, _ := config.CredentialsPath()
		fmt.Printf("API key saved to %s\n", path)
		return nil

	case configRemoveKey:
		if err := config.RemoveAPIKey(); err != nil {
			return err
		}
		fmt.Println("API key removed")
		return nil

	case configShowKey:
		key, err := config.LoadAPIKey()
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Println("No API key stored")
			return nil
		}
		fmt.Printf("API key: %s\n", config.MaskKey(key))
		return nil

	default:
		return cmd.Help()
	}
}
