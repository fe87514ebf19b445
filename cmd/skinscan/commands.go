package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/jo-hoe/skinscan/internal/core"
	"github.com/jo-hoe/skinscan/internal/history"
	"github.com/jo-hoe/skinscan/internal/report"
	"github.com/jo-hoe/skinscan/internal/staging"
)

type commandFunc func(ctx context.Context, service *core.CoreService, config *core.ServiceConfig, args []string, stdout, stderr io.Writer) error

var commands = map[string]commandFunc{
	"scan":    scanCommand,
	"history": historyCommand,
	"report":  reportCommand,
	"logout":  logoutCommand,
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	return flags
}

func scanCommand(ctx context.Context, service *core.CoreService, config *core.ServiceConfig, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("scan", stderr)
	writeReport := flags.BoolP("report", "r", false, "write a PDF report of the prediction")
	wait := flags.BoolP("wait", "w", false, "wait for the history to confirm the scan")
	quiet := flags.BoolP("quiet", "q", false, "do not print progress")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return errors.New("scan needs at least one image")
	}

	files := make([]staging.File, 0, flags.NArg())
	for _, path := range flags.Args() {
		files = append(files, staging.FileFromPath(path))
	}
	if _, err := service.Stage(ctx, files); err != nil {
		return err
	}

	progress := func(p int) {
		if !*quiet {
			fmt.Fprintf(stderr, "\ranalyzing... %3d%%", p)
		}
	}
	predictions, err := service.Submit(ctx, progress)
	if !*quiet {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	for _, p := range predictions {
		fmt.Fprintf(stdout, "%s\t%s\n", p.Disease, report.FormatConfidence(p.Confidence))
		if *writeReport {
			path, err := savePDF(config.Report.OutputDir, service.ReportForPrediction(p))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "report written to %s\n", path)
		}
	}

	if *wait {
		if err := service.WaitForHistory(ctx); err != nil {
			return err
		}
		printHistory(stdout, service.History())
	}
	return nil
}

func historyCommand(ctx context.Context, service *core.CoreService, config *core.ServiceConfig, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("history", stderr)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := service.RefreshHistory(ctx); err != nil {
		return err
	}
	printHistory(stdout, service.History())
	return nil
}

func reportCommand(ctx context.Context, service *core.CoreService, config *core.ServiceConfig, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("report", stderr)
	index := flags.IntP("index", "i", 0, "history entry to report, 0 is the most recent")
	out := flags.StringP("out", "o", config.Report.OutputDir, "output directory")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := service.RefreshHistory(ctx); err != nil {
		return err
	}

	records := service.History()
	if *index < 0 || *index >= len(records) {
		return fmt.Errorf("no history entry %d (history has %d entries)", *index, len(records))
	}
	path, err := savePDF(*out, service.RenderReport(records[*index]))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "report written to %s\n", path)
	return nil
}

func logoutCommand(ctx context.Context, service *core.CoreService, config *core.ServiceConfig, args []string, stdout, stderr io.Writer) error {
	if err := service.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "logged out subject #%06d\n", service.Session().SubjectID)
	return nil
}

func printHistory(w io.Writer, records []history.ScanRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no scans yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tDISEASE\tCONFIDENCE\tSTATUS")
	for i, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, r.Timestamp.Local().Format("2006-01-02 15:04"), r.Disease, report.FormatConfidence(r.Confidence), r.Provenance)
	}
	_ = tw.Flush()
}

func savePDF(dir string, doc *report.Document) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(doc.FileName))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := report.EncodePDF(doc, f); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
