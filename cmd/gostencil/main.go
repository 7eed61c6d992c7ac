// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gostencil builds the stencils of an HCL file for one or all backends, and writes the
// generated artifacts.
//
// Usage:
//
//	gostencil -backend=all -caching=jit -output=~/.cache/gostencil stencils.hcl
//	gostencil -list
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gostencil/backends"
	_default "github.com/gomlx/gostencil/backends/default"
	"github.com/gomlx/gostencil/pkg/stencil/ast"
	"github.com/gomlx/gostencil/pkg/stencil/builder"
	"github.com/gomlx/gostencil/pkg/stencil/cache"
	"github.com/gomlx/gostencil/pkg/stencil/hclfront"
	"github.com/gomlx/gostencil/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Backend to build for, or \"all\". Defaults to $%s or %q.", backends.GOSTENCIL_BACKEND, _default.DefaultBackend))
	flagCaching = flag.String("caching", cache.JIT,
		fmt.Sprintf("Caching strategy: %s, %s or %s.", cache.NoCaching, cache.Memory, cache.JIT))
	flagOutput   = flag.String("output", builder.DefaultOutputPath, "Root directory of the generated artifacts.")
	flagBindings = flag.String("bindings", "", "Comma-separated list of bindings languages to generate (e.g. \"python\").")
	flagStencil  = flag.String("stencil", "", "Build only the stencil with this name. By default all stencils in the file are built.")
	flagRebuild  = flag.Bool("rebuild", false, "Regenerate the artifacts even if they are cached.")
	flagFormat   = flag.Bool("format", false, "Indent the generated sources for readability.")
	flagList     = flag.Bool("list", false, "List the registered backends and exit.")
	flagParallel = flag.Int("parallelism", 0, "Number of parallel builds: 0 for the number of CPUs, -1 for unlimited.")
	flagColor    = flag.Bool("color", true, "Colored tables. If false, tables are plain ASCII.")
	flagOpts     = optFlags{}
)

func init() {
	flag.Var(&flagOpts, "opt", "Backend option \"[scope:]key=value\", e.g. \"/gt:openmp=true\" or \"block_i=16\". Can be repeated.")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if !*flagColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if *flagList {
		fmt.Println(titleStyle.Render("Backends"))
		fmt.Println(backendsTable(_default.Registry()).Render())
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one HCL file with the stencil definitions. See 'gostencil -help'.")
		os.Exit(1)
	}
	defs := must.M1(hclfront.ParseFile(args[0]))
	if *flagStencil != "" {
		defs = slices.DeleteFunc(defs, func(def *ast.Definition) bool { return def.Name != *flagStencil })
		if len(defs) == 0 {
			klog.Errorf("Stencil %q not found in %s", *flagStencil, args[0])
			os.Exit(1)
		}
	}

	var names []string
	switch *flagBackend {
	case "all":
		names = _default.Registry().Names()
	case "":
		names = []string{_default.DefaultName()}
	default:
		names = strings.Split(*flagBackend, ",")
	}

	ctx := builder.Context{
		Caching:     *flagCaching,
		OutputPath:  *flagOutput,
		Options:     builder.Options{Rebuild: *flagRebuild, FormatSource: *flagFormat, BackendOpts: flagOpts.params},
		Parallelism: *flagParallel,
	}
	if *flagBindings != "" {
		for _, name := range strings.Split(*flagBindings, ",") {
			ctx.Bindings = append(ctx.Bindings, must.M1(backends.ParseLanguage(name)))
		}
	}

	var bar *progressbar.ProgressBar
	if total := len(defs) * len(names); total > 1 {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("building"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish(),
		)
	}

	var rows []buildRow
	for _, def := range defs {
		results, err := builder.BuildAll(def, names, ctx)
		if err != nil {
			klog.Errorf("Failed to build stencil %q: %+v", def.Name, err)
			os.Exit(1)
		}
		for _, name := range names {
			r := results[name]
			dir := r.OutputPath
			if dir == "" {
				// Not persisted by the cache: write them ourselves.
				dir = filepath.Join(fsutil.MustReplaceTildeInDir(*flagOutput), r.Key.Dir())
				must.M(r.Artifacts.WriteTo(dir))
			}
			rows = append(rows, buildRow{Stencil: def.Name, Result: r, Dir: dir})
		}
		if bar != nil {
			must.M(bar.Add(len(names)))
		}
	}
	if bar != nil {
		must.M(bar.Finish())
	}
	fmt.Println(titleStyle.Render("Builds"))
	fmt.Println(buildsTable(rows).Render())
}
