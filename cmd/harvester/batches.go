package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/job-harvester/internal/sources"
	"github.com/alvmarrod/job-harvester/internal/storage"
)

func newBatchesCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.ListBatches(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}
			if len(batches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No batches found")
				return nil
			}

			renderBatchSummaries(cmd.OutOrStdout(), batches)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.MaxBatchSummaries, "maximum number of batches")
	return cmd
}

func newRecordsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "records <batch-id>",
		Short: "Show a batch and its source records, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := store.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("batch %s: %w", args[0], err)
			}
			records, err := store.ListRecords(cmd.Context(), b.ID)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			renderBatch(cmd.OutOrStdout(), b)
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func newSourcesCommand() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the job boards searched, or the URLs generated for --title",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderSources(cmd.OutOrStdout(), title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "show the URLs generated for this job title")
	return cmd
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderBatchSummaries(w io.Writer, batches []*storage.BatchSummary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Status", "Progress", "Records", "Job Titles", "Created"})

	for _, b := range batches {
		t.AppendRow(table.Row{
			b.ID,
			b.Status,
			fmt.Sprintf("%d/%d", b.CompletedSources, b.TotalSources),
			b.RecordCount,
			strings.Join(b.JobTitles, ", "),
			b.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	t.Render()
}

func renderBatch(w io.Writer, b *storage.Batch) {
	t := newTable(w)
	t.SetTitle("Batch " + b.ID)
	t.AppendRows([]table.Row{
		{"Status", b.Status},
		{"Job Titles", strings.Join(b.JobTitles, ", ")},
		{"Progress", fmt.Sprintf("%d/%d", b.CompletedSources, b.TotalSources)},
		{"Created", b.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	})
	if b.CompletedAt != nil {
		t.AppendRow(table.Row{"Completed", b.CompletedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()
}

func renderRecords(w io.Writer, records []*storage.SourceRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records harvested")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Domain", "Page Title", "Emails", "Contacts", "Postings", "Hops", "Time (ms)"})

	emails := 0
	for _, r := range records {
		emails += len(r.Emails)
		t.AppendRow(table.Row{
			r.Domain,
			r.PageTitle,
			strings.Join(r.Emails, "\n"),
			len(r.Contacts),
			len(r.JobPostings),
			len(r.RedirectChain) - 1,
			r.ProcessingTimeMs,
		})
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d records", len(records)), "", emails})
	t.Render()
}

func renderSources(w io.Writer, title string) {
	t := newTable(w)

	if title == "" {
		t.SetTitle("Job boards (templates " + sources.TemplateVersion + ")")
		t.AppendHeader(table.Row{"Board", "Template"})
		for _, b := range sources.Boards() {
			t.AppendRow(table.Row{b.Name, b.Template})
		}
		t.Render()
		return
	}

	t.SetTitle("Source URLs for " + title)
	t.AppendHeader(table.Row{"Board", "URL"})
	urls := sources.GenerateURLs(title)
	for i, b := range sources.Boards() {
		t.AppendRow(table.Row{b.Name, urls[i]})
	}
	t.Render()
}
