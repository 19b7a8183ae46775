// Command genoindex builds variant indexes for genotype containers. IMPUTE2
// and VCF files get the native .idx SQLite index; BGEN files are delegated
// to the external bgenix tool, which owns the .bgi format.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/genoparse/genoparse/impute2"
	"github.com/genoparse/genoparse/index"
	"github.com/genoparse/genoparse/vcf"
)

func main() {
	var (
		impute2List = flag.String("impute2", "", "Comma-separated IMPUTE2 (.gen or .gen.gz) files to index")
		vcfList     = flag.String("vcf", "", "Comma-separated VCF (.vcf or .vcf.gz) files to index")
		bgenList    = flag.String("bgen", "", "Comma-separated BGEN files; indexing is delegated to bgenix")
		legacy      = flag.Bool("legacy", false, "Build indexes readable by SQLite builds prior to 3.8.2")
		bgenixPath  = flag.String("bgenix", "bgenix", "bgenix executable used for -bgen files")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mode := index.ModeDefault
	if *legacy {
		mode = index.ModeLegacy
	}

	impute2Files := splitList(*impute2List)
	vcfFiles := splitList(*vcfList)
	bgenFiles := splitList(*bgenList)
	if len(impute2Files)+len(vcfFiles)+len(bgenFiles) == 0 {
		flag.PrintDefaults()
		logger.Error("no files to index")
		os.Exit(1)
	}

	var g errgroup.Group
	for _, path := range impute2Files {
		path := expandHome(path)
		g.Go(func() error {
			logger.Info("indexing", "format", "impute2", "file", path, "mode", mode.String())
			return index.Build(path, mode, impute2.IndexScan(path))
		})
	}
	for _, path := range vcfFiles {
		path := expandHome(path)
		g.Go(func() error {
			logger.Info("indexing", "format", "vcf", "file", path, "mode", mode.String())
			return index.Build(path, mode, vcf.IndexScan(path))
		})
	}
	for _, path := range bgenFiles {
		path := expandHome(path)
		g.Go(func() error {
			args := []string{"-g", path, "-index"}
			if *legacy {
				args = append(args, "-with-rowid")
			}
			logger.Info("indexing", "format", "bgen", "file", path, "tool", *bgenixPath)
			cmd := exec.Command(*bgenixPath, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		usr, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}
