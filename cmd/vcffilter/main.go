// Command vcffilter compiles a filter expression against a small,
// hard-coded in-memory schema and evaluates it against one
// synthesized demo record, printing the site-level verdict and
// per-sample mask. It exists to exercise package compiler and
// package program end to end; reading real VCF/BCF input is out of
// scope (see SPEC_FULL.md).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/skx/vcffilter/compiler"
	"github.com/skx/vcffilter/vcf"
)

func main() {
	expr := flag.String("expr", `QUAL>10 & FMT/DP>10`, "filter expression to compile and run")
	manual := flag.Bool("manual", false, "print the expression-language manual and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *manual {
		compiler.WriteManual(os.Stdout)
		return
	}

	header := demoHeader()
	record := demoRecord(header)

	slog.Debug("compiling expression", "expr", *expr)
	prog, hint, err := compiler.Compile(header, *expr)
	if err != nil {
		slog.Error("compile failed", "error", err)
		os.Exit(1)
	}
	slog.Debug("compiled", "unpack_hint", hint, "tokens", len(prog.Tokens))

	res, err := prog.Evaluate(record)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("site pass: %v\n", res.Pass)
	fmt.Printf("sample mask: %v\n", res.SampleMask)
}

func demoHeader() *vcf.MemHeader {
	return vcf.NewMemHeader(3,
		vcf.FieldDef{Name: "DP", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "GQ", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "DV", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "DP4", Type: vcf.Float, Arity: 4, Category: vcf.CategoryInfo},
		vcf.FieldDef{Name: "AF", Type: vcf.Float, Arity: 1, Category: vcf.CategoryInfo},
		vcf.FieldDef{Name: "PASS", Type: vcf.Flag, Arity: 0, Category: vcf.CategoryFilter},
		vcf.FieldDef{Name: "q10", Type: vcf.Flag, Arity: 0, Category: vcf.CategoryFilter},
	)
}

func demoRecord(h *vcf.MemHeader) *vcf.MemRecord {
	dpID, _ := h.LookupID("DP")
	gqID, _ := h.LookupID("GQ")
	dvID, _ := h.LookupID("DV")
	dp4ID, _ := h.LookupID("DP4")
	passID, _ := h.LookupID("PASS")

	return vcf.NewMemRecord().
		WithQual(42).
		WithVariantType(vcf.VariantSNP).
		WithInfoVector(dp4ID, []float64{12, 13, 9, 11}).
		WithFormatInt(dpID, []int32{20, 5, vcf.Int32Missing}).
		WithFormatInt(gqID, []int32{40, 9, 30}).
		WithFormatInt(dvID, []int32{8, 2, 6}).
		WithFilters(passID)
}
