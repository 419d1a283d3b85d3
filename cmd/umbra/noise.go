package main

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"
)

func newNoiseCmd(c *cli) *cobra.Command {
	var (
		out   string
		scale int
	)
	cmd := &cobra.Command{
		Use:   "noise",
		Short: "Write the shadow filter tap rotation texture as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scale < 1 {
				return fmt.Errorf("scale must be at least 1, got %d", scale)
			}
			sm := shadow.NewShadowMapManager(gfx.NewNullDevice(), shadow.WithSeed(c.cfg.Simulate.Seed))
			img := upscaleNoise(sm.TapRotationImage(), scale)

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return fmt.Errorf("encode %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			c.log.Infof("wrote %dx%d tap rotation noise to %s", img.Bounds().Dx(), img.Bounds().Dy(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "noise.png", "output file")
	cmd.Flags().IntVar(&scale, "scale", 4, "nearest neighbour upscale factor")
	return cmd
}

// upscaleNoise scales src by an integer factor and makes it opaque; the
// stored texture leaves alpha at zero.
func upscaleNoise(src *image.RGBA, scale int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
