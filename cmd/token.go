package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	internalApp "github.com/haierkeys/evidence-board-service/internal/app"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	pkgapp "github.com/haierkeys/evidence-board-service/pkg/app"
)

type tokenFlags struct {
	config string
	actor  string
	name   string
	role   string
	color  string
}

func init() {
	f := new(tokenFlags)

	var tokenCommand = &cobra.Command{
		Use:   "token -a actor [-r role]",
		Short: "Issue an actor token for the board channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(f.config)
			if err != nil {
				return err
			}
			cfg, _, err := internalApp.LoadConfig(config)
			if err != nil {
				return err
			}
			tc, ok := cfg.TokenConfig()
			if !ok {
				return errors.New("security.auth-token-key is empty, tokens are not required")
			}

			token, err := pkgapp.NewTokenManager(tc).Generate(pkgapp.ActorEntity{
				ActorID: f.actor,
				Name:    f.name,
				Role:    domain.ParseRole(f.role).String(),
				Color:   f.color,
			})
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	rootCmd.AddCommand(tokenCommand)
	fs := tokenCommand.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "config file")
	fs.StringVarP(&f.actor, "actor", "a", "", "actor id")
	fs.StringVarP(&f.name, "name", "n", "", "display name")
	fs.StringVarP(&f.role, "role", "r", "player", "player, trusted, assistant or gamemaster")
	fs.StringVar(&f.color, "color", "", "actor color")
	_ = tokenCommand.MarkFlagRequired("actor")
}
