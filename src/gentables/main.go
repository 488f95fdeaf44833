package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/jinjor/rings-resonator/src/dsp"
)

const numPoints = 257

// CLI ...
type CLI struct {
	Dir string `arg:"" type:"path" help:"Directory to write the tables to"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("gentables"),
		kong.Description("Writes the reference lookup tables and their analytic counterparts"),
		kong.UsageOnError(),
	)
	log.SetFlags(log.Lshortfile)
	if err := os.MkdirAll(cliArgs.Dir, 0o755); err != nil {
		log.Fatalf("error: %v\n", err)
	}

	ctx := context.Background()
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		ts := dsp.ReferenceTables()
		log.Println("generated reference tables")
		err := ts.Save(filepath.Join(cliArgs.Dir, "reference.tables"))
		log.Println("saved reference tables")
		return err
	})
	g.Go(func() error {
		ts := analyticTables()
		log.Println("generated analytic tables")
		err := ts.Save(filepath.Join(cliArgs.Dir, "analytic.tables"))
		log.Println("saved analytic tables")
		return err
	})
	err := g.Wait()
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("Successfully generated tables.")
}

// analyticTables samples the analytic functions at the points of the
// reference tables.
func analyticTables() *dsp.TableSet {
	stiffness := make([]float32, numPoints)
	fourDecades := make([]float32, numPoints)
	svfShift := make([]float32, numPoints)
	for i := 0; i < numPoints; i++ {
		x := float32(i) / (numPoints - 1)
		stiffness[i] = dsp.Stiffness(x)
		fourDecades[i] = dsp.FourDecades(x)
		svfShift[i] = dsp.SvfShift(float32(i))
	}
	return &dsp.TableSet{
		Tables: map[string][]float32{
			"stiffness": stiffness,
			"4_decades": fourDecades,
			"svf_shift": svfShift,
		},
	}
}
