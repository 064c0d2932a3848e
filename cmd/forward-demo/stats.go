package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	forward "github.com/gekko3d/forward"
	"github.com/olekukonko/tablewriter"
)

var dumper *spew.ConfigState

func init() {
	dumper = spew.NewDefaultConfig()
	dumper.DisableCapacities = true
	dumper.DisablePointerAddresses = true
	dumper.SortKeys = true
}

func writeInfo(w io.Writer, info forward.Info) error {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Value"})
	rows := []struct {
		name  string
		value int
	}{
		{"draw calls", info.DrawCalls},
		{"shadow draws", info.ShadowDraws},
		{"triangles", info.Triangles},
		{"lines", info.Lines},
		{"points", info.Points},
		{"culled", info.Culled},
		{"skipped", info.Skipped},
		{"programs", info.Programs},
		{"geometries", info.Geometries},
		{"textures", info.Textures},
		{"state changes", info.StateChanges},
		{"uniform uploads", info.UniformUploads},
		{"uniforms skipped", info.UniformsSkipped},
	}
	for _, r := range rows {
		table.Append([]string{r.name, strconv.Itoa(r.value)})
	}
	table.SetFooter([]string{"frame", strconv.Itoa(info.Frame)})
	table.Render()
	_, err := w.Write(buf.Bytes())
	return err
}

func writePrograms(w io.Writer, r *forward.Renderer) error {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"ID", "Label", "Handle", "Used", "Uniforms", "Status"})
	failed := 0
	for _, p := range r.Programs().Programs() {
		status := "ok"
		if !p.Valid() {
			status = p.Diagnostics.Stage
			failed++
		}
		table.Append([]string{
			strconv.Itoa(p.ID),
			p.Label,
			fmt.Sprint(p.Handle),
			strconv.Itoa(p.UsedTimes()),
			strconv.Itoa(len(p.Info)),
			status,
		})
	}
	table.SetFooter([]string{"", "", "", "", "FAILED", strconv.Itoa(failed)})
	table.Render()
	_, err := w.Write(buf.Bytes())
	return err
}
