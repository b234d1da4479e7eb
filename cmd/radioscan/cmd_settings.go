package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radioscan-network/radioscan/pkg/cli"
	"github.com/radioscan-network/radioscan/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.radioscan/settings.json.

Settings provide defaults for global flags:
  - address_file: Used when -f is not specified
  - config_file:  Used when -c is not specified
  - output_dir:   Used when -o is not specified
  - redis_addr:   Used when --redis is not specified

Examples:
  radioscan settings show
  radioscan settings set address_file /etc/radioscan/radios.txt
  radioscan settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			t.Row(name, value)
		}

		printSetting("address_file", s.AddressFile)
		printSetting("config_file", s.ConfigFile)
		printSetting("output_dir", s.OutputDir)
		printSetting("redis_addr", s.RedisAddr)

		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  address_file - Address file listing radios (-f flag default)
  config_file  - Run config file (-c flag default)
  output_dir   - CSV output directory (-o flag default)
  redis_addr   - Redis address (--redis flag default)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "address_file":
			s.AddressFile = value
			fmt.Printf("Address file set to: %s\n", value)
		case "config_file":
			s.ConfigFile = value
			fmt.Printf("Config file set to: %s\n", value)
		case "output_dir":
			s.OutputDir = value
			fmt.Printf("Output directory set to: %s\n", value)
		case "redis_addr":
			s.RedisAddr = value
			fmt.Printf("Redis address set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: address_file, config_file, output_dir, redis_addr)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		var value string
		switch args[0] {
		case "address_file":
			value = s.AddressFile
		case "config_file":
			value = s.ConfigFile
		case "output_dir":
			value = s.OutputDir
		case "redis_addr":
			value = s.RedisAddr
		default:
			return fmt.Errorf("unknown setting: %s (valid: address_file, config_file, output_dir, redis_addr)", args[0])
		}

		if value == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
