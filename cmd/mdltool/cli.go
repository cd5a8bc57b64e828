package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/kotormdl/internal/config"
	"github.com/Faultbox/kotormdl/internal/logger"
	"github.com/Faultbox/kotormdl/pkg/mdl"
	"github.com/Faultbox/kotormdl/pkg/mdl/ascii"
	"github.com/Faultbox/kotormdl/pkg/mdl/gltfimport"
)

// cli holds state shared by all commands.
type cli struct {
	out       io.Writer
	overrides config.Overrides
	cfg       *config.Config
	log       *zap.Logger
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, cfg: config.Default(), log: zap.NewNop()}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mdltool",
		Short:         "Build binary MDL/MDX model pairs",
		Long:          `mdltool writes the binary MDL/MDX model pair from ASCII models or glTF scenes, and inspects the planned layout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.overrides.Path, "config", "", "path to config file")
	flags.BoolVar(&c.overrides.Debug, "debug", false, "enable debug logging")
	flags.StringVar(&c.overrides.LogFile, "log-file", "", "also log to this file")
	flags.BoolVar(&c.overrides.TSL, "tsl", false, "write the second game's layout")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.asciiCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.configCommand())
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.overrides)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	c.log = logger.Named("mdltool")
	return nil
}

func (c *cli) encodeOptions() mdl.Options {
	opts := c.cfg.Export.Options()
	opts.Logger = logger.Log
	return opts
}

func (c *cli) buildCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build <model.ascii>",
		Short: "Build a binary model pair from an ASCII model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := outputPath(args[0], output, ".mdl")
			if output == "" && samePath(target, args[0]) {
				return fmt.Errorf("output %s would overwrite the input; choose a path with -o", target)
			}
			m, err := readASCII(args[0], c.cfg.Export.AnimationScale)
			if err != nil {
				return err
			}
			return c.writeModel(cmd.Context(), m, target)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .mdl path (default: <input>.mdl)")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var output, name string
	cmd := &cobra.Command{
		Use:   "import <scene.gltf|scene.glb>",
		Short: "Build a binary model pair from a glTF scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadScene(args[0], name)
			if err != nil {
				return err
			}
			return c.writeModel(cmd.Context(), m, outputPath(args[0], output, ".mdl"))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .mdl path (default: <input>.mdl)")
	cmd.Flags().StringVar(&name, "name", "", "model name (default: input file name)")
	return cmd
}

func (c *cli) asciiCommand() *cobra.Command {
	var output, name string
	cmd := &cobra.Command{
		Use:   "ascii <scene.gltf|scene.glb>",
		Short: "Convert a glTF scene to an ASCII model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadScene(args[0], name)
			if err != nil {
				return err
			}
			opts := ascii.WriteOptions{Timestamp: time.Now()}
			if output == "" || output == "-" {
				return ascii.Write(c.out, m, opts)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := ascii.Write(f, m, opts); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			c.log.Info("ascii model written", zap.String("path", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&name, "name", "", "model name (default: input file name)")
	return cmd
}

func (c *cli) planCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <model.ascii>",
		Short: "Print the planned layout of an ASCII model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readASCII(args[0], c.cfg.Export.AnimationScale)
			if err != nil {
				return err
			}
			plan, err := mdl.NewEncoder(c.encodeOptions()).Layout(m)
			if err != nil {
				return err
			}
			dump := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
			dump.Fdump(c.out, plan)
			return nil
		},
	}
}

func (c *cli) configCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				if err := c.cfg.Save(); err != nil {
					return err
				}
				fmt.Fprintln(c.out, filepath.Join(config.ConfigDir(), "config.yaml"))
				return nil
			}
			if err := c.cfg.SaveTo(output); err != nil {
				return err
			}
			fmt.Fprintln(c.out, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "config file path (default: user config directory)")
	return cmd
}

func (c *cli) loadScene(path, name string) (*mdl.Model, error) {
	class, err := c.cfg.Export.ModelClassification()
	if err != nil {
		return nil, err
	}
	m, err := gltfimport.Load(path, gltfimport.Options{
		Name:           name,
		Classification: class,
		Logger:         logger.Log,
	})
	if err != nil {
		return nil, err
	}
	c.cfg.Export.Apply(m)
	return m, nil
}

func (c *cli) writeModel(ctx context.Context, m *mdl.Model, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plan, err := mdl.WriteFiles(path, m, c.encodeOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\t%d bytes\n%s\t%d bytes\n",
		path, plan.StructuralSize, mdl.MDXPath(path), plan.CompanionSize)
	return nil
}

// readASCII parses the text model at path. scale applies when the text
// sets no animation scale of its own.
func readASCII(path string, scale float32) (*mdl.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ascii.ReadWithOptions(f, ascii.ReadOptions{AnimationScale: scale})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// outputPath returns explicit when set, otherwise input with its extension
// replaced by ext. A trailing ".ascii" is dropped together with a ".mdl"
// before it, so "tri.mdl.ascii" maps to "tri.mdl".
func outputPath(input, explicit, ext string) string {
	if explicit != "" {
		return explicit
	}
	base := input
	if e := filepath.Ext(base); strings.EqualFold(e, ".ascii") {
		base = strings.TrimSuffix(base, e)
		if e := filepath.Ext(base); strings.EqualFold(e, ".mdl") {
			base = strings.TrimSuffix(base, e)
		}
		return base + ext
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// samePath reports whether a and b name the same location.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
