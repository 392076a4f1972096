package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"corekernel/cmd/mkdiskimage/internal/fatimage"
	"corekernel/cmd/mkdiskimage/internal/manifest"
)

func newBuildCommand() *cobra.Command {
	var manifestPath, outputPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "assemble a FAT32 image from a manifest",
		RunE: func(c *cobra.Command, args []string) error {
			return runBuild(manifestPath, outputPath)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "build/manifest.yaml", "path to the volume manifest")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "build/disk.img", "path of the image to write")

	return cmd
}

func runBuild(manifestPath, outputPath string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	manifestDir := filepath.Dir(manifestPath)
	files := make([]fatimage.File, 0, len(m.Files))
	var totalBytes uint64
	for _, entry := range m.Files {
		srcPath := entry.Path
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(manifestDir, srcPath)
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return errors.Wrapf(err, "build: reading %s", srcPath)
		}
		files = append(files, fatimage.File{Name: entry.Name, Data: data})
		totalBytes += uint64(len(data))
	}

	img, err := fatimage.Build(files)
	if err != nil {
		return errors.Wrap(err, "build: assembling volume")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.Wrapf(err, "build: creating output directory for %s", outputPath)
	}
	if err := os.WriteFile(outputPath, img, 0o644); err != nil {
		return errors.Wrapf(err, "build: writing %s", outputPath)
	}

	fmt.Printf("packed %s of payload into a %s image at %s\n",
		humanize.Bytes(totalBytes), humanize.Bytes(uint64(len(img))), outputPath)
	return nil
}
