package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/bootstrap"
	"github.com/stackdeploy/stackdeploy/internal/env"
	"github.com/stackdeploy/stackdeploy/internal/secrets"
)

// newBootstrapCommand creates the "bootstrap" subcommand that installs the self-hosted poller.
func newBootstrapCommand(opts *Options) *cobra.Command {
	bootOpts := bootstrap.Options{
		GitUsername:  bootstrap.DefaultGitUsername,
		PollInterval: defaultPollInterval,
		Image:        bootstrap.DefaultImage,
	}
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Write compose.yml and .env for a stackdeploy poller and start it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			var envCfg gitEnv
			if err := parseEnv(&envCfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("git-url") && envPresent("GITHUB_URL") {
				bootOpts.GitURL = envCfg.URL
			}
			if !cmd.Flags().Changed("git-username") && envPresent("GITHUB_USERNAME") {
				bootOpts.GitUsername = envCfg.Username
			}

			if err := bootOpts.Validate(); err != nil {
				return err
			}

			token := envCfg.Token
			if token == "" {
				var err error
				if token, err = secrets.PromptTerminal("Github Token:"); err != nil {
					return err
				}
			}
			passphrase, err := secrets.Passphrase(secrets.PassphraseOptions{
				Flag:        opts.Password,
				Env:         os.Getenv(secrets.PassphraseEnv),
				Interactive: true,
				Prompt: func(string) (string, error) {
					return secrets.PromptTerminal("KeePass Passphrase:")
				},
			})
			if err != nil {
				return err
			}
			bootOpts.GitToken = token
			bootOpts.Passphrase = passphrase

			paths, err := bootstrap.Write(bootOpts)
			if err != nil {
				return err
			}
			logger.Info("wrote poller project", "compose", paths.ComposeFile, "env", paths.EnvFile)

			return newComposeClient(opts, logger).Up(cmd.Context(), bootOpts.ProjectDir, env.FromOS())
		},
	}

	cmd.Flags().StringVar(&bootOpts.ProjectDir, "project-dir", "", "Where to place compose.yml and .env")
	cmd.Flags().StringVar(&bootOpts.GitURL, "git-url", "", "Stacks repository the poller clones")
	cmd.Flags().StringVar(&bootOpts.GitUsername, "git-username", bootOpts.GitUsername, "Git username used with the token")
	cmd.Flags().IntVar(&bootOpts.PollInterval, "poll-interval", bootOpts.PollInterval, "Seconds between git pulls")
	cmd.Flags().StringVar(&bootOpts.Image, "image", bootOpts.Image, "stackdeploy container image")
	_ = cmd.MarkFlagRequired("project-dir")

	return cmd
}
