package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/export"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Derive every part in a CSV part list and export the results",
		Description: "Parts are read as name,size,config,module[,index]. Results are written " +
			"as CSV, or rendered into one config file per part when --template is given. " +
			"Parts that fail to derive are logged and left out of the export.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "parts",
				Aliases: []string{"p"},
				Usage:   "CSV part list",
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "part config template; enables per-part file export",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "CSV file, or directory for template export (default: stdout / current directory)",
			},
			&cli.IntFlag{
				Name:  "digits",
				Usage: "significant digits in exported values",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "parallel derivations (0 uses every CPU)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "fail when any entry, row or part is skipped",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	s, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	manager, diags, err := loadRegistry(s, logger)
	if err != nil {
		return err
	}

	f, err := os.Open(s.PartsFile)
	if err != nil {
		return fmt.Errorf("failed to open part list: %w", err)
	}
	rows, rowErrs := batch.ReadRows(f)
	f.Close()
	for _, e := range rowErrs {
		logger.Warn("skipped part row",
			zap.String("source", s.PartsFile),
			zap.Int("line", e.Line),
			zap.Error(e.Err),
		)
	}

	results, err := batch.NewProcessor(s.Workers, logger).Run(ctx, rows, manager)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed++
		logger.Warn("failed to derive part",
			zap.String("part", r.Row.Name),
			zap.String("config", r.Row.Config),
			zap.Float64("size", r.Row.Size),
			zap.Int("line", r.Row.Line),
			zap.Error(r.Err),
		)
	}

	records := export.FromResults(results)
	exported := len(records)
	if s.TemplateFile != "" {
		var unwritten int
		unwritten, err = writeTemplateFiles(s.TemplateFile, s.Output, s.Digits, records, logger)
		failed += unwritten
		exported -= unwritten
	} else {
		err = writeCSV(cmd.Root().Writer, s.Output, s.Digits, records)
	}
	if err != nil {
		return err
	}

	logger.Info("generation complete",
		zap.Int("parts", len(rows)),
		zap.Int("exported", exported),
		zap.Int("failed", failed),
		zap.Int("skipped_rows", len(rowErrs)),
		zap.Int("diagnostics", len(diags)),
	)

	if cmd.Bool("strict") && (failed > 0 || len(rowErrs) > 0 || len(diags) > 0) {
		return fmt.Errorf("%d configuration entries, %d rows and %d parts were skipped",
			len(diags), len(rowErrs), failed)
	}
	return nil
}

// writeCSV writes records to path, or to stdout when path is empty or "-"
func writeCSV(stdout io.Writer, path string, digits int, records []export.Record) error {
	if path == "" || path == "-" {
		return export.NewCSVWriter(stdout, digits).Write(records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.NewCSVWriter(f, digits).Write(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeTemplateFiles renders one file per record and returns how many
// records could not be written. Those are logged; the error is reserved for
// problems with the template or the output directory.
func writeTemplateFiles(templatePath, dir string, digits int, records []export.Record, logger *zap.Logger) (int, error) {
	tmpl, err := export.LoadTemplate(templatePath, digits)
	if err != nil {
		return 0, err
	}
	if dir == "" {
		dir = "."
	}

	paths, err := tmpl.WriteFiles(dir, records)
	unwritten := export.RecordErrors(err)
	if err != nil && len(unwritten) == 0 {
		return 0, err
	}
	for _, e := range unwritten {
		logger.Warn("failed to write part config", zap.String("part", e.Name), zap.Error(e.Err))
	}
	logger.Info("wrote part configs", zap.Int("files", len(paths)), zap.String("dir", dir))
	return len(unwritten), nil
}
