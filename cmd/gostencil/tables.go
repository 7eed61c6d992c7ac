// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gostencil/backends"
	"github.com/gomlx/gostencil/pkg/core/layout"
	"github.com/gomlx/gostencil/pkg/stencil/builder"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerRowStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		})
}

func backendsTable(registry *backends.Registry) *lgtable.Table {
	table := newTable().Headers("Backend", "Computation", "Bindings", "Device", "Performance", "Layout (IJK)", "Alignment")
	for _, b := range registry.All() {
		desc := b.Descriptor()
		var bindings []string
		for _, lang := range desc.BindingsLanguages() {
			bindings = append(bindings, lang.String())
		}
		info := desc.StorageInfo()
		mapFn := info.LayoutMap
		if mapFn == nil {
			mapFn = layout.COrder
		}
		table.Row(desc.Name(), desc.ComputationLanguage().String(), strings.Join(bindings, ", "),
			info.Device.String(), fmt.Sprintf("%v", desc.IsPerformance()),
			fmt.Sprintf("%v", mapFn("IJK")), humanize.Bytes(uint64(max(info.Alignment, 1))))
	}
	return table
}

type buildRow struct {
	Stencil string
	Result  *builder.Result
	Dir     string
}

func buildsTable(rows []buildRow) *lgtable.Table {
	table := newTable().Headers("Stencil", "Backend", "Cached", "Files", "Size", "Directory")
	for _, row := range rows {
		r := row.Result
		table.Row(row.Stencil, r.Backend, fmt.Sprintf("%v", r.Cached),
			humanize.Comma(int64(len(r.Artifacts.Flatten()))), humanize.Bytes(uint64(r.Artifacts.Size())), row.Dir)
	}
	return table
}
