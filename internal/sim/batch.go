package sim

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nerwo/escrow-go/config"
)

type FileReport struct {
	Path   string
	Report *Report // nil when the scenario couldn't be loaded
	Err    error
}

/*
RunFiles replays scenarios from the files, every scenario on its own ledger.
At most parallel scenarios run at the same time. Reports are returned in the
order of paths, the error is the first scenario failure (if any).
*/
func RunFiles(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, paths []string, parallel int) ([]FileReport, error) {
	reports := make([]FileReport, len(paths))
	g := errgroup.Group{}
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			reports[i].Path = path
			if err := ctx.Err(); err != nil {
				reports[i].Err = err
				return err
			}
			reports[i].Report, reports[i].Err = runFile(cfg, log.WithField("scenario", path), path)
			if reports[i].Err != nil {
				return fmt.Errorf("%s: %w", path, reports[i].Err)
			}
			return nil
		})
	}
	return reports, g.Wait()
}

func runFile(cfg *config.Config, log logrus.FieldLogger, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc, err := ParseScenario(f)
	if err != nil {
		return nil, err
	}
	runner, err := NewRunner(cfg, log)
	if err != nil {
		return nil, err
	}
	return runner.Run(sc)
}
