package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/BrennanTM/vacraft/internal/report"
	"github.com/BrennanTM/vacraft/internal/verify"
)

var errVerifyFailed = errors.New("verification failed")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check input integrity, dictionary coverage and a stored run",
	Example: "  vacraft verify --events views.csv --dictionary dictionary.csv\n" +
		"  vacraft verify --run 3 --outputs out --out verification.json",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()
		eventsPath, _ := f.GetString("events")
		dictPath, _ := f.GetString("dictionary")
		runRef, _ := f.GetString("run")
		outputsDir, _ := f.GetString("outputs")
		outPath, _ := f.GetString("out")

		in := verify.Input{
			EventsPath:     eventsPath,
			DictionaryPath: dictPath,
			Events:         cfg.Pipeline.Events,
		}

		if runRef != "" {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			run, err := lookupRun(cmd, s.RunRepo(), []string{runRef})
			s.Close()
			if err != nil {
				return err
			}
			if in.EventsPath == "" {
				in.EventsPath = run.EventsPath
			}
			if in.DictionaryPath == "" {
				in.DictionaryPath = run.DictionaryPath
			}
			in.Expected = &verify.Expected{
				RunID:     run.ID,
				Users:     run.Cohort.TotalUsers,
				PageViews: run.Cohort.TotalPageViews,
			}
		}
		if in.EventsPath == "" || in.DictionaryPath == "" {
			return fmt.Errorf("--events and --dictionary are required unless --run names a stored run")
		}

		if outputsDir != "" {
			for _, name := range []string{report.JSONFile, report.UsersFile, report.SectionsFile, report.SummaryFile, report.SynthesisFile} {
				in.Outputs = append(in.Outputs, filepath.Join(outputsDir, name))
			}
		}

		rep, err := verify.Run(ctx, in)
		if err != nil {
			return err
		}

		if outPath != "" {
			fh, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := verify.WriteJSON(fh, rep); err != nil {
				fh.Close()
				return err
			}
			if err := fh.Close(); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
		}

		printVerification(cmd, rep)
		if rep.Status != verify.StatusPass {
			return errVerifyFailed
		}
		return nil
	},
}

func printVerification(cmd *cobra.Command, rep *verify.Report) {
	w := cmd.OutOrStdout()

	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetTitle("Files")
	ft.AppendHeader(table.Row{"Role", "Path", "Size", "SHA-256"})
	for _, fc := range rep.Files {
		sum := "missing"
		if fc.Exists {
			sum = fc.SHA256[:min(16, len(fc.SHA256))]
		}
		ft.AppendRow(table.Row{fc.Role, fc.Path, fc.Size, sum})
	}
	ft.SetStyle(table.StyleRounded)
	ft.Render()

	if st := rep.Stats; st != nil {
		fmt.Fprintf(w, "Rows: %d raw, %d page views from %d users, %d distinct pages, %d dictionary entries\n",
			st.RawRows, st.PageViews, st.Users, st.DistinctPages, st.DictionaryPages)
	}
	if cv := rep.Coverage; cv != nil {
		fmt.Fprintf(w, "Coverage: %d/%d viewed pages in dictionary (%.1f%%)\n", cv.Covered, cv.ViewedPages, cv.Rate)
		if len(cv.Unmapped) > 0 {
			fmt.Fprintf(w, "Unmapped: %v\n", cv.Unmapped)
		}
	}
	if cc := rep.Cross; cc != nil {
		fmt.Fprintf(w, "Run %s: users %d/%d, page views %d/%d (reported/actual)\n",
			shortID(cc.RunID), cc.ReportedUsers, cc.ActualUsers, cc.ReportedPageViews, cc.ActualPageViews)
	}
	for _, p := range rep.Problems {
		fmt.Fprintf(w, "✗ %s\n", p)
	}
	fmt.Fprintf(w, "Status: %s\n", rep.Status)
}

func init() {
	f := verifyCmd.Flags()
	f.String("events", "", "Page-view export CSV")
	f.String("dictionary", "", "Content dictionary CSV")
	f.String("run", "", "Stored run (number or id prefix) to cross-check")
	f.String("outputs", "", "Report directory whose files are checksummed")
	f.String("out", "", "Write the verification report as JSON to this file")
}
