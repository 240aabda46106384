package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/board"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

type renderFlags struct {
	config string
	scene  string
	out    string
	width  float64
	height float64
}

func init() {
	f := new(renderFlags)

	var renderCommand = &cobra.Command{
		Use:   "render -s scene [-o board.svg]",
		Short: "Render a scene's board to SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(f.config)
			if err != nil {
				return err
			}
			a, _, err := bootApp(config, "")
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			opts := a.SnapshotOptions()
			if f.width > 0 {
				opts.Width = f.width
			}
			if f.height > 0 {
				opts.Height = f.height
			}

			var w io.Writer = os.Stdout
			if f.out != "" && f.out != "-" {
				file, err := os.Create(f.out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			curves, err := board.RenderSVG(cmd.Context(), f.scene, opts, w)
			if err != nil {
				return err
			}
			a.Logger().Info("board rendered", zap.String(logger.FieldSceneID, f.scene), zap.Int(logger.FieldCount, curves), zap.String(logger.FieldPath, f.out))
			return nil
		},
	}

	rootCmd.AddCommand(renderCommand)
	fs := renderCommand.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "config file")
	fs.StringVarP(&f.scene, "scene", "s", "", "scene id")
	fs.StringVarP(&f.out, "out", "o", "-", "output file, - for stdout")
	fs.Float64Var(&f.width, "width", 0, "canvas width")
	fs.Float64Var(&f.height, "height", 0, "canvas height")
	_ = renderCommand.MarkFlagRequired("scene")
}
