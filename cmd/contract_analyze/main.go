package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/contractlens-backend/internal/app"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	"github.com/yungbote/contractlens-backend/internal/platform/shutdown"
)

// contract_analyze runs the whole pipeline on one local file in-process and
// prints the stored results as JSON.
func main() {
	var (
		title     string
		threshold string
		skipRisk  bool
		skipAmend bool
	)
	flag.StringVar(&title, "title", "", "document title (defaults to the file name)")
	flag.StringVar(&threshold, "risk-threshold", "", "minimum risk level for amendments (low|medium|high|critical)")
	flag.BoolVar(&skipRisk, "skip-risk", false, "stop after parsing")
	flag.BoolVar(&skipAmend, "skip-amendments", false, "stop after risk assessment")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: contract_analyze [flags] <file.pdf|docx|doc|txt>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	os.Exit(run(path, title, threshold, skipRisk, skipAmend))
}

func run(path, title, threshold string, skipRisk, skipAmend bool) int {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		return 1
	}
	defer application.Close()

	level, err := analysis.ParseThreshold(threshold, application.Cfg.DefaultRiskThreshold)
	if err != nil {
		fmt.Printf("%v\n", err)
		return 2
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("open %s: %v\n", path, err)
		return 1
	}
	defer f.Close()

	orch := application.Services.Orchestrator
	out := map[string]any{}

	doc, err := orch.Ingest(ctx, analysis.Upload{Filename: filepath.Base(path), Title: title, Body: f})
	out["document"] = doc
	if err != nil {
		return fail(out, "ingest", err)
	}
	if !skipRisk {
		risks, err := orch.AssessAllRisks(ctx, doc.ID)
		out["risk"] = risks
		if err != nil {
			return fail(out, "assess risks", err)
		}
		if !skipAmend {
			amendments, err := orch.GenerateAmendments(ctx, doc.ID, level)
			out["amendments"] = amendments
			if err != nil {
				return fail(out, "generate amendments", err)
			}
		}
	}
	printJSON(out)
	return 0
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(partial map[string]any, step string, err error) int {
	partial["error"] = fmt.Sprintf("%s: %v", step, err)
	printJSON(partial)
	return 1
}
