package main

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vizctx"
	"github.com/gogpu/vizctx/backend"
	"github.com/gogpu/vizctx/overlay"
	"github.com/gogpu/vizctx/render"
)

type runOptions struct {
	designs     []string
	viewers     int
	frames      int
	fps         int
	width       int
	height      int
	initialTier string
	snapshot    string
	overlay     bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mount viewers and step frames on a simulated clock",
		Long: `Run mounts viewers on in-memory surfaces and steps their frame loops on a
simulated clock. The simulated frame rate drives the quality controller, so a
low --fps shows tier downgrades without a slow machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if o.initialTier != "" {
				cfg.Quality.InitialTier = o.initialTier
			}
			if cmd.Flags().Changed("overlay") {
				cfg.Render.Overlay = o.overlay
			}
			return o.run(cmd.OutOrStdout(), vizctx.WithConfig(cfg))
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&o.designs, "design", "d", nil, "designs to mount, cycled across viewers (default: all)")
	f.IntVarP(&o.viewers, "viewers", "n", 1, "number of viewers")
	f.IntVarP(&o.frames, "frames", "f", 300, "frames to step")
	f.IntVar(&o.fps, "fps", 60, "simulated frame rate")
	f.IntVar(&o.width, "width", 320, "surface width")
	f.IntVar(&o.height, "height", 240, "surface height")
	f.StringVar(&o.initialTier, "initial-tier", "", "starting quality tier (low, medium, high)")
	f.StringVar(&o.snapshot, "snapshot", "", "write the first viewer's last frame as PNG")
	f.BoolVar(&o.overlay, "overlay", false, "draw the diagnostic overlay on the snapshot")
	return cmd
}

type viewerResult struct {
	viewer *vizctx.Viewer
	design string
	loads  int
	errs   []error
}

func (o *runOptions) run(out io.Writer, opts ...vizctx.Option) error {
	if o.viewers < 1 || o.frames < 1 || o.fps < 1 {
		return errors.New("viewers, frames and fps must be positive")
	}

	sched := render.NewManualScheduler()
	app, err := vizctx.NewApp(append(opts, vizctx.WithScheduler(sched))...)
	if err != nil {
		return err
	}
	defer app.Close()

	designs := o.designs
	if len(designs) == 0 {
		for _, d := range app.Catalog().Designs() {
			designs = append(designs, d.String())
		}
	}

	results := make([]*viewerResult, o.viewers)
	for i := range results {
		r := &viewerResult{design: designs[i%len(designs)]}
		s := backend.NewMemorySurfaceWithID(fmt.Sprintf("bench-%d", i), o.width, o.height)
		r.viewer = app.Mount(s, vizctx.Props{Design: r.design, AutoRotate: true}, vizctx.Callbacks{
			OnLoad:  func() { r.loads++ },
			OnError: func(err error) { r.errs = append(r.errs, err) },
		})
		results[i] = r
	}

	now := time.Unix(0, 0)
	step := time.Second / time.Duration(o.fps)
	start := time.Now()
	for range o.frames {
		sched.Step(now)
		now = now.Add(step)
	}
	elapsed := time.Since(start)

	report(out, app, results, o.frames, elapsed)

	if o.snapshot != "" {
		return o.writeSnapshot(app, results[0].viewer)
	}
	return nil
}

func report(out io.Writer, app *vizctx.App, results []*viewerResult, frames int, elapsed time.Duration) {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VIEWER\tDESIGN\tSTATE\tFPS\tTIER\tLOADS\tERRORS\tCALLS\tTRIANGLES")
	for i, r := range results {
		fi, _ := r.viewer.LastFrame()
		p.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\n",
			i, r.design, r.viewer.State(), r.viewer.FPS(), r.viewer.Tier(),
			r.loads, len(r.errs), fi.Stats.DrawCalls, fi.Stats.Triangles)
	}
	tw.Flush()

	for i, r := range results {
		for _, err := range r.errs {
			fmt.Fprintf(out, "viewer %d: %v\n", i, err)
		}
	}
	fmt.Fprintln(out, app.Pool().Stats())
	p.Fprintf(out, "%d frames in %v (backend %s)\n", frames, elapsed.Round(time.Millisecond), app.Backend().Name())
}

func (o *runOptions) writeSnapshot(app *vizctx.App, v *vizctx.Viewer) error {
	img, err := v.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if app.Config().Render.Overlay {
		fi, mem := v.LastFrame()
		overlay.Draw(img, overlay.FromFrame(fi, mem))
	}

	f, err := os.Create(o.snapshot)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: %w", err)
	}
	return f.Close()
}
