package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"carlot/internal/api"
	"carlot/internal/format"
	"carlot/internal/models"
)

var (
	jsonFormatter format.Formatter = format.JSONFormatter{}
	textFormatter format.Formatter = format.TextFormatter{}
)

func writeJSON(payload any) error {
	return jsonFormatter.Write(os.Stdout, payload)
}

func writeTable(table format.Table) error {
	return textFormatter.Write(os.Stdout, table)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeUploadResult(resp api.UploadResponse) error {
	lines := []string{fmt.Sprintf("id: %s", resp.ID)}
	for i, id := range resp.PicIDs {
		lines = append(lines, fmt.Sprintf("pic %d: %s", i+1, id))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeVehicleList(vehicles []models.Vehicle) error {
	table := format.Table{Header: []string{"ID", "YEAR", "MAKE", "MODEL", "PRICE", "PICS", "UPDATED"}}
	for _, v := range vehicles {
		table.Rows = append(table.Rows, []string{
			v.ID, v.Year, v.Make, v.Model, v.Price,
			strconv.Itoa(len(v.PicIDs)), formatTime(v.UpdatedAt),
		})
	}
	return writeTable(table)
}

func writeVehicleDetail(v models.Vehicle) error {
	lines := []string{fmt.Sprintf("id: %s", v.ID)}
	fields := v.Fields()
	for _, name := range models.VehicleFieldNames {
		if fields[name] != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", name, fields[name]))
		}
	}
	lines = append(lines,
		fmt.Sprintf("version: %d", v.Version),
		fmt.Sprintf("created_at: %s", formatTime(v.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(v.UpdatedAt)),
	)
	lines = append(lines, picLines(v.PicIDs)...)
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeAssetGroupList(groups []models.AssetGroup) error {
	table := format.Table{Header: []string{"ID", "NAME", "PICS", "UPDATED"}}
	for _, g := range groups {
		table.Rows = append(table.Rows, []string{g.ID, g.Name, strconv.Itoa(len(g.PicIDs)), formatTime(g.UpdatedAt)})
	}
	return writeTable(table)
}

func writeAssetGroupDetail(g models.AssetGroup) error {
	lines := []string{fmt.Sprintf("id: %s", g.ID)}
	if g.Name != "" {
		lines = append(lines, fmt.Sprintf("name: %s", g.Name))
	}
	lines = append(lines,
		fmt.Sprintf("version: %d", g.Version),
		fmt.Sprintf("created_at: %s", formatTime(g.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(g.UpdatedAt)),
	)
	lines = append(lines, picLines(g.PicIDs)...)
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeReconcileReport(report api.ReconcileResponse) error {
	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	lines := []string{
		fmt.Sprintf("mode: %s", mode),
		fmt.Sprintf("orphans: %d (%d bytes)", len(report.Orphans), report.OrphanBytes),
		fmt.Sprintf("dangling: %d", len(report.Dangling)),
		fmt.Sprintf("skipped_recent: %d", report.SkippedRecent),
	}
	if !report.DryRun {
		lines = append(lines,
			fmt.Sprintf("deleted: %d", report.DeletedCount),
			fmt.Sprintf("relinked: %d", report.Relinked),
			fmt.Sprintf("unlinked: %d", report.UnlinkedCount),
			fmt.Sprintf("failed: %d", report.FailedCount),
		)
	}
	for _, id := range report.Orphans {
		lines = append(lines, fmt.Sprintf("  orphan %s", id))
	}
	for _, d := range report.Dangling {
		refs := make([]string, 0, len(d.Records))
		for _, rec := range d.Records {
			refs = append(refs, rec.String())
		}
		lines = append(lines, fmt.Sprintf("  dangling %s <- %s", d.ObjectID, strings.Join(refs, ", ")))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func picLines(ids []string) []string {
	if len(ids) == 0 {
		return []string{"pics: none"}
	}
	lines := []string{"pics:"}
	for _, id := range ids {
		lines = append(lines, "  - "+id)
	}
	return lines
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
