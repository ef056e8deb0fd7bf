package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/server"
	"github.com/janelia-flyem/catvol/sqlstore"
	"github.com/janelia-flyem/catvol/storage"
	"github.com/janelia-flyem/catvol/volume"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	note = color.New(color.FgYellow).SprintFunc()
)

// stackFlags selects a project stack.
type stackFlags struct {
	project int64
	stack   int64
}

func (f *stackFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.project, "project", 0, "CATMAID project id")
	cmd.Flags().Int64Var(&f.stack, "stack", 0, "CATMAID stack id")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("stack")
}

type stores struct {
	kv storage.Store
	db *sqlstore.DB
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.kv != nil {
		s.kv.Close()
	}
}

// openStores opens the key-value store and, if withDB is set, the database.
func openStores(configPath string, withDB bool) (*server.Config, *stores, error) {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Logging.SetLogger()
	s := new(stores)
	if s.kv, err = storage.Open(cfg.Store); err != nil {
		return nil, nil, err
	}
	if withDB {
		s.db, err = sqlstore.Open(context.Background(), sqlstore.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
		if err != nil {
			s.Close()
			return nil, nil, err
		}
	}
	return cfg, s, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <config.toml>",
		Short: "Serve the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(args[0])
			if err != nil {
				return err
			}
			return server.Serve(cfg)
		},
	}
}

func buildVolumeCmd() *cobra.Command {
	var sf stackFlags
	var skeleton int64
	cmd := &cobra.Command{
		Use:   "build-volume <config.toml>",
		Short: "Assemble the segmentation volume of a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openStores(args[0], true)
			if err != nil {
				return err
			}
			defer s.Close()
			var skeletonID *int64
			if skeleton > 0 {
				skeletonID = &skeleton
			}
			assembler := volume.NewAssembler(s.db, s.kv, volume.NewLocker(), cfg.Volume.Workers)
			m, err := assembler.BuildVolume(cmd.Context(), sf.project, sf.stack, skeletonID)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s with %d sections, generation %s\n", ok("BUILT"),
				catvol.VolumeName(sf.project, sf.stack, "segmentation"), len(m.Sections), m.Generation)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().Int64Var(&skeleton, "skeleton", 0, "Only stamp the components of this skeleton")
	return cmd
}

func importComponentsCmd() *cobra.Command {
	var sf stackFlags
	cmd := &cobra.Command{
		Use:   "import-components <config.toml> <components.json>",
		Short: "Load connected component sections into a stack's component tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStores(args[0], false)
			if err != nil {
				return err
			}
			defer s.Close()
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			sections, err := componenttree.ReadImport(f)
			if err != nil {
				return err
			}
			tree := componenttree.New(s.kv, sf.project, sf.stack)
			n, err := tree.Import(sections)
			if err != nil {
				return err
			}
			fmt.Printf("%s %d components on %d sections into %s\n", ok("IMPORTED"), n, len(sections), tree)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func importSectionCmd() *cobra.Command {
	var sf stackFlags
	var z int32
	var scale int
	var hdf5Path string
	cmd := &cobra.Command{
		Use:   "import-section <config.toml> <image>",
		Short: "Store a grayscale image as one section of a stack's raw image volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStores(args[0], false)
			if err != nil {
				return err
			}
			defer s.Close()
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			img, format, err := image.Decode(f)
			if err != nil {
				return fmt.Errorf("could not decode %s: %v", args[1], err)
			}
			gray := catvol.Luminance(img)
			if _, err := volume.PutImageSection(s.kv, volume.NewLocker(), sf.project, sf.stack, hdf5Path, scale, z, gray); err != nil {
				return err
			}
			fmt.Printf("%s %s %d x %d %s as section %d of %s (%s)\n", ok("STORED"), format, gray.Width, gray.Height,
				note(humanize.Bytes(uint64(len(gray.Data)))), z, volume.ImagePath(hdf5Path, scale, z),
				catvol.VolumeName(sf.project, sf.stack, ""))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().Int32Var(&z, "z", 0, "Section index")
	cmd.Flags().IntVar(&scale, "scale", 0, "Scale level")
	cmd.Flags().StringVar(&hdf5Path, "hdf5-path", "/", "Image dataset, e.g. / for raw or /labels")
	return cmd
}

func aboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show the version and available storage engines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("catvol %s (volume format %s)\n", server.Version, volume.FormatVersion)
			for _, e := range storage.EnginesAvailable() {
				fmt.Printf("  %s\n", e)
			}
		},
	}
}
