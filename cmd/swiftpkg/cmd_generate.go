package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swiftpkg/internal/checkout"
	"swiftpkg/internal/manifest"
	"swiftpkg/internal/resolve"
)

var (
	genSrcDir  string
	genScheme  string
	genNoWrite bool
	genToken   string
	genOutDir  string
)

// generateCmd runs the scheme resolution and manifest-generation pipeline
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Resolve a release scheme and generate the RPM include fragments",
	Long: `Resolves every repository of the given branch scheme to a commit hash and
writes version.inc, source.inc and rename.inc.

The scheme's repositories come from utils/update_checkout/update-checkout-config.json
inside the Swift source tree. With --src-dir the existing tree is fetched and
reset to the scheme branch; without it, the tree is cloned into a temporary
directory that is removed afterwards.

Commits are resolved through the GitHub API when a token is available
(--github-token or GITHUB_TOKEN), otherwise by cloning each repository.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genSrcDir, "src-dir", "", "Existing Swift source directory (default: temporary clone)")
	generateCmd.Flags().StringVar(&genScheme, "scheme", "", "Branch scheme to generate (required)")
	generateCmd.Flags().BoolVar(&genNoWrite, "no-write", false, "Print the resolved repositories as JSON instead of writing files")
	generateCmd.Flags().StringVar(&genToken, "github-token", "", "GitHub token (or set GITHUB_TOKEN env)")
	generateCmd.Flags().StringVar(&genOutDir, "output-dir", "", "Directory for the generated .inc files (default from config)")
	generateCmd.MarkFlagRequired("scheme")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown; temp directories must still be cleaned up.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	log := logger.With(zap.String("run_id", uuid.NewString()[:8]), zap.String("scheme", genScheme))

	// An unsupported scheme is fatal before any network work starts.
	schemeVersion, err := cfg.SchemeVersion(genScheme)
	if err != nil {
		return err
	}

	token := genToken
	if token == "" {
		token = cfg.GitHubToken
	}

	preparer := checkout.NewPreparer(log)
	srcDir, cleanup, err := preparer.Prepare(ctx, checkout.Options{
		SrcDir:  genSrcDir,
		Scheme:  genScheme,
		RepoURL: cfg.SwiftRepoURL,
		Timeout: cfg.GetCloneTimeout(),
	})
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := checkout.Load(filepath.Join(srcDir, cfg.ConfigPath))
	if err != nil {
		return err
	}
	schemeRepos, err := doc.SchemeRepos(genScheme)
	if err != nil {
		return err
	}

	resolver := resolve.Pick(cfg.GitHubAPIURL, token, cfg.GetResolveTimeout(), cfg.GetCloneTimeout(), log)
	set, err := resolve.ResolveAll(ctx, doc, schemeRepos, resolver, cfg.Parallelism, log)
	if err != nil {
		return err
	}
	log.Info("Resolved all repositories", zap.Int("count", len(set)))

	if genNoWrite {
		out, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	files, err := manifest.Render(set, schemeVersion, cfg.PrimaryRepo, time.Now().UTC())
	if err != nil {
		return err
	}

	outDir := genOutDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if err := files.WriteTo(outDir); err != nil {
		return err
	}
	log.Info("All files generated successfully", zap.String("output_dir", outDir))
	return nil
}
