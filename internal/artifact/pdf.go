// Package artifact exports preset collections as printable PDF sheets.
package artifact

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/presets"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// Sheet is a family of presets rendered as one table per preset.
type Sheet struct {
	Title    string
	Default  string
	Sections []Section
}

// Section is one preset.
type Section struct {
	Name    string
	Date    uint64
	Removed bool
	Header  []string
	Rows    [][]string
}

// FuelSheet lays out fuel presets as altitude rows of (temperature,
// consumption) pairs, one block per thrust setting.
func FuelSheet(list []presets.Preset[protocol.FuelCurve], def string) Sheet {
	sheet := Sheet{Title: "Fuel presets", Default: def}
	for _, p := range list {
		sec := Section{
			Name:    p.Name,
			Date:    p.Date,
			Removed: p.Removed(),
			Header:  []string{"Thrust %", "Altitude ft", "Temp / Consumption"},
		}
		for _, c := range p.Curve {
			for _, pt := range c.Points {
				values := ""
				for i, v := range pt.Values {
					if i > 0 {
						values += "  "
					}
					values += fmt.Sprintf("%g°C: %g", v[0], v[1])
				}
				sec.Rows = append(sec.Rows, []string{
					strconv.FormatUint(uint64(c.Thrust), 10),
					strconv.FormatUint(uint64(pt.Alt), 10),
					values,
				})
			}
		}
		sheet.Sections = append(sheet.Sections, sec)
	}
	return sheet
}

// DeviationSheet lays out deviation presets as (heading, deviation) rows.
func DeviationSheet(list []presets.Preset[[2]int16], def string) Sheet {
	sheet := Sheet{Title: "Deviation presets", Default: def}
	for _, p := range list {
		sec := Section{
			Name:    p.Name,
			Date:    p.Date,
			Removed: p.Removed(),
			Header:  []string{"Heading", "Deviation"},
		}
		for _, v := range p.Curve {
			sec.Rows = append(sec.Rows, []string{
				strconv.Itoa(int(v[0])) + "°",
				fmt.Sprintf("%+d°", v[1]),
			})
		}
		sheet.Sections = append(sheet.Sections, sec)
	}
	return sheet
}

// WritePDF renders sheet. Tombstones are listed but have no table.
func WritePDF(w io.Writer, sheet Sheet) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, sheet.Title, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, "Generated: "+time.Now().Format(time.RFC3339), "", 1, "L", false, 0, "")
	if sheet.Default != "" {
		pdf.CellFormat(0, 7, tr("Default preset: "+sheet.Default), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(sheet.Sections) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 7, "No presets recorded.", "", 1, "L", false, 0, "")
		return pdf.Output(w)
	}

	for _, sec := range sheet.Sections {
		pdf.SetFont("Arial", "B", 12)
		title := fmt.Sprintf("%s (date %d)", sec.Name, sec.Date)
		if sec.Removed {
			title += " - deleted"
		}
		pdf.CellFormat(0, 8, tr(truncate(title, 80)), "", 1, "L", false, 0, "")

		if sec.Removed || len(sec.Rows) == 0 {
			pdf.Ln(2)
			continue
		}

		widths := columnWidths(len(sec.Header))
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 220, 220)
		for i, h := range sec.Header {
			pdf.CellFormat(widths[i], 7, h, "1", lineEnd(i, len(sec.Header)), "L", true, 0, "")
		}

		pdf.SetFont("Arial", "", 9)
		for _, row := range sec.Rows {
			for i, cell := range row {
				pdf.CellFormat(widths[i], 6, tr(truncate(cell, 90)), "1", lineEnd(i, len(row)), "L", false, 0, "")
			}
		}
		pdf.Ln(4)
	}

	return pdf.Output(w)
}

// columnWidths gives the last column the remaining page width.
func columnWidths(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 30
	}
	if n > 0 {
		w[n-1] = 0
	}
	return w
}

func lineEnd(i, n int) int {
	if i == n-1 {
		return 1
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
