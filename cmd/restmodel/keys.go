package main

import (
	"fmt"

	"github.com/artpar/restmodel/adapters/hasher"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the API key",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an API key and its bcrypt hash",
	Long: `Generate a random API key and print it with the bcrypt hash to put
in auth.api_key_hash. The key is shown once.

Examples:
  restmodel keys generate
  restmodel keys hash rm_0123...`,
	Args: cobra.NoArgs,
	RunE: runKeysGenerate,
}

var keysHashCmd = &cobra.Command{
	Use:   "hash <key>",
	Short: "Print the bcrypt hash of an existing key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysHash,
}

var keyCost int

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysHashCmd)

	keysCmd.PersistentFlags().IntVar(&keyCost, "cost", 0, "bcrypt cost (default: bcrypt default)")
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	key, err := hasher.GenerateKey()
	if err != nil {
		return err
	}
	hash, err := hasher.NewBcrypt(keyCost).Hash(key)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key:  %s\n", key)
	fmt.Fprintf(out, "hash: %s\n", hash)
	return nil
}

func runKeysHash(cmd *cobra.Command, args []string) error {
	hash, err := hasher.NewBcrypt(keyCost).Hash(args[0])
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}
