/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"io"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"chainguard.dev/gitfleet/workqueue"
)

// summarize logs each failure and the aggregate counts.
func summarize(ctx context.Context, report *workqueue.Report) {
	log := clog.FromContext(ctx)
	for _, outcome := range report.Outcomes {
		if outcome.Status == workqueue.StatusFailed {
			log.Errorf("%s %s failed: %v", outcome.Kind, outcome.Name, outcome.Err)
		}
	}
	log.Infof("%d items: %d created, %d updated, %d up-to-date, %d skipped, %d failed",
		len(report.Outcomes),
		report.Count(workqueue.StatusCreated),
		report.Count(workqueue.StatusUpdated),
		report.Count(workqueue.StatusUpToDate),
		report.Count(workqueue.StatusSkipped),
		report.Count(workqueue.StatusFailed))
	if report.Interrupted {
		log.Warn("Run was interrupted before all work completed")
	}
}

// renderTable writes the per-item report table.
func renderTable(w io.Writer, report *workqueue.Report) error {
	table := newReportTable([]string{"Status", "Kind", "Name", "Detail", "Elapsed"}, w)
	for _, outcome := range report.Outcomes {
		detail := outcome.Detail
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		row := []string{
			outcome.Status.String(),
			outcome.Kind,
			outcome.Name,
			detail,
			outcome.Elapsed.Round(time.Millisecond).String(),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// newReportTable creates a table writer with the formatting every gitfleet
// report uses.
func newReportTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
