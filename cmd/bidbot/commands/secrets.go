package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bidbot-engine/internal/errs"
	"bidbot-engine/internal/llm"
	"bidbot-engine/internal/secrets"
)

// SecretsCmd manages keychain entries.
var SecretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage API keys and the marketplace password in the OS keychain",
	Long: `Store secrets in the OS keychain instead of .env.

NAME is an AI provider (openai, gemini, openrouter), "workana" for the
password of marketplace.email, or a raw keychain account.

Examples:
  bidbot secrets set gemini        # Prompts for the key on stdin
  bidbot secrets set workana
  bidbot secrets delete openai`,
}

var secretsSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Store a secret (value read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsSet,
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsDelete,
}

func init() {
	SecretsCmd.AddCommand(secretsSetCmd)
	SecretsCmd.AddCommand(secretsDeleteCmd)
}

// accountFor maps a friendly name to its keychain account.
func accountFor(name, email string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderOpenRouter:
		return secrets.AIAccount(n), nil
	case "workana", "marketplace", "password":
		if email == "" {
			return "", errs.WithHint(errs.New("marketplace.email is not set"),
				"set marketplace.email in config.yml or WORKANA_EMAIL first")
		}
		return secrets.MarketplaceAccount(email), nil
	}
	return name, nil
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	account, err := accountFor(args[0], app.Cfg.Marketplace.Email)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "value for %s: ", account)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return errs.Wrap(err, "read value")
	}
	if err := secrets.Set(account, strings.TrimSpace(line)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", account)
	return nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	account, err := accountFor(args[0], app.Cfg.Marketplace.Email)
	if err != nil {
		return err
	}
	if err := secrets.Delete(account); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", account)
	return nil
}
