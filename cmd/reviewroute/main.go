package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zen-systems/reviewroute/pkg/audit"
	"github.com/zen-systems/reviewroute/pkg/backend"
	"github.com/zen-systems/reviewroute/pkg/breaker"
	"github.com/zen-systems/reviewroute/pkg/complexity"
	"github.com/zen-systems/reviewroute/pkg/config"
	"github.com/zen-systems/reviewroute/pkg/engine"
	"github.com/zen-systems/reviewroute/pkg/multipass"
	"github.com/zen-systems/reviewroute/pkg/registry"
	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/route"
)

var routesFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "reviewroute",
		Short: "Declarative routing and adaptive multi-pass control for automated code review",
		Long: `Reviewroute routes code review requests through an ordered table of
	LLM backends with fallback, per-route timeouts and retries, and runs an
	adaptive number of analysis passes sized by the change's complexity.`,
	}

	rootCmd.PersistentFlags().StringVar(&routesFile, "routes", "", "path to a route declaration file")

	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func reviewCmd() *cobra.Command {
	var diffFile string
	var titleFlag string
	var modeFlag string
	var passesFlag int
	var noAdaptive bool
	var auditDir string
	var mockFlag bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run a review through the route table",
		Long: `Reads a unified diff (from --file or stdin), classifies it, and runs
	the multi-pass review cascade. The final result is printed as JSON.

	Use --mock to run against the built-in mock backend instead of real
	providers; useful for exercising route declarations offline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := readDiff(diffFile)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if modeFlag == "" {
				modeFlag = cfg.ExecutionMode
			}

			reg, err := buildRegistry(cfg, mockFlag)
			if err != nil {
				return err
			}

			loader := route.NewLoader(reg)
			gate := breaker.New(filepath.Join(cfg.ConfigDir, "breaker"))
			eng := engine.New(reg, engine.WithHealthGate(gate))

			loadOpts := route.LoadOptions{
				CustomPath:      routesFile,
				Mode:            modeFlag,
				CI:              cfg.CI,
				AllowCustomInCI: cfg.AllowCustomRoutes,
				Disabled:        cfg.RouterDisabled,
			}

			opts := []multipass.Option{
				multipass.WithAdaptive(!noAdaptive),
			}
			if passesFlag > 0 {
				opts = append(opts, multipass.WithPassCount(passesFlag))
			}
			if auditDir != "" {
				writer, err := audit.NewWriter(auditDir, audit.NewRunID())
				if err != nil {
					return fmt.Errorf("failed to create audit directory: %w", err)
				}
				opts = append(opts, multipass.WithAuditWriter(writer))
				opts = append(opts, multipass.WithCounterStore(
					audit.NewFileStore(filepath.Join(auditDir, "counters.json"))))
				fmt.Fprintf(os.Stderr, "Audit trail: %s\n", writer.RunDir())
			}

			orch := multipass.New(loader, eng, loadOpts, opts...)

			req := review.Request{
				ID:    audit.HashString(diff),
				Title: titleFlag,
				Diff:  diff,
				Stats: review.ParseDiffStats(diff),
				CI:    cfg.CI,
			}

			result, err := orch.Run(context.Background(), req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result.Final, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			fmt.Fprintf(os.Stderr, "Complexity: deterministic=%s reported=%s final=%s; passes=%d\n",
				result.Deterministic, result.Reported, result.Level, len(result.Passes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&diffFile, "file", "f", "", "unified diff path (defaults to stdin)")
	cmd.Flags().StringVar(&titleFlag, "title", "", "change title shown to the reviewer")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "execution mode override (auto, primary, secondary)")
	cmd.Flags().IntVar(&passesFlag, "passes", 0, "fixed pass count (0 uses the default)")
	cmd.Flags().BoolVar(&noAdaptive, "no-adaptive", false, "disable adaptive pass planning")
	cmd.Flags().StringVar(&auditDir, "audit", "", "directory for the audit trail (disabled if empty)")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "use the mock backend instead of real providers")

	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the effective route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reg, err := buildRegistry(cfg, true)
			if err != nil {
				return err
			}

			loader := route.NewLoader(reg)
			table, err := loader.Load(route.LoadOptions{
				CustomPath:      routesFile,
				Mode:            cfg.ExecutionMode,
				CI:              cfg.CI,
				AllowCustomInCI: cfg.AllowCustomRoutes,
				Disabled:        cfg.RouterDisabled,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tBACKEND\tWHEN\tCAPABILITY\tFAIL MODE\tTIMEOUT\tRETRIES")
			for i, r := range table.Routes() {
				when := strings.Join(r.Conditions(), ", ")
				if when == "" {
					when = "-"
				}
				capability := r.RequiredCapability()
				if capability == "" {
					capability = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
					i, r.Backend(), when, capability, r.FailMode(), r.Timeout(), r.Retries())
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Source: %s, schema v%d, hash %s\n",
				table.Source(), table.SchemaVersion(), table.Hash())
			return w.Flush()
		},
	}
}

func classifyCmd() *cobra.Command {
	var diffFile string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show the deterministic complexity classification for a diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := readDiff(diffFile)
			if err != nil {
				return err
			}

			stats := review.ParseDiffStats(diff)
			level := complexity.Classify(stats)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Files changed:\t%d\n", stats.FilesChanged)
			fmt.Fprintf(w, "Lines changed:\t%d\n", stats.LinesChanged)
			if path, hit := complexity.SensitivePath(stats.Paths); hit {
				fmt.Fprintf(w, "Sensitive path:\t%s\n", path)
			}
			fmt.Fprintf(w, "Level:\t%s\n", level)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&diffFile, "file", "f", "", "unified diff path (defaults to stdin)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [routes.yaml]",
		Short: "Validate a route declaration file",
		Long:  "Parses and validates route declarations without executing anything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reg, err := buildRegistry(cfg, true)
			if err != nil {
				return err
			}

			loader := route.NewLoader(reg)
			table, err := loader.Load(route.LoadOptions{CustomPath: args[0]})
			if err != nil {
				return err
			}

			fmt.Printf("Route file is valid: %d routes, schema v%d, hash %s\n",
				table.Len(), table.SchemaVersion(), table.Hash())
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model aliases and what they resolve to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tMODEL")
			for _, name := range sortedAliases(cfg.Models) {
				resolved, err := cfg.Models.Resolve(name)
				if err != nil {
					resolved = fmt.Sprintf("error: %v", err)
				}
				fmt.Fprintf(w, "%s\t%s\n", name, resolved)
			}
			return w.Flush()
		},
	}
}

func statsCmd() *cobra.Command {
	var auditDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show accumulated run counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if auditDir == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				auditDir = filepath.Join(cfg.ConfigDir, "audit")
			}

			store := audit.NewFileStore(filepath.Join(auditDir, "counters.json"))
			counters, err := audit.ReadCounters(store)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Runs:\t%d\n", counters.Runs)
			fmt.Fprintf(w, "Passes:\t%d\n", counters.Passes)
			fmt.Fprintf(w, "Attempts:\t%d\n", counters.Attempts)
			fmt.Fprintf(w, "Exhaustions:\t%d\n", counters.Exhaustions)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&auditDir, "audit", "", "audit directory (defaults to the config dir)")
	return cmd
}

func readDiff(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read diff: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	diff := strings.TrimSpace(string(data))
	if diff == "" {
		return "", fmt.Errorf("no diff supplied; pass --file or pipe a diff on stdin")
	}
	return diff, nil
}

// buildRegistry registers the backends whose credentials are configured.
// The static backend is always present so the default cascade can never
// come up empty.
func buildRegistry(cfg *config.Config, mock bool) (*registry.Registry, error) {
	reg := registry.NewWithBuiltins()

	if mock {
		// Stand-ins for every shipped backend name, so validating or
		// listing a table never rejects a backend that merely lacks a
		// key in this environment.
		out := backend.ValidMockOutput(review.VerdictApproved, "small")
		reg.RegisterBackend(&backend.Mock{
			BackendName: "anthropic",
			Caps:        []string{"review", "long_context"},
			Script:      []backend.MockStep{{Output: out}},
		})
		reg.RegisterBackend(backend.NewMock("openai", out))
		reg.RegisterBackend(backend.NewMock("google", out))
		reg.RegisterBackend(backend.NewMock("mock", out))
		reg.RegisterBackend(backend.NewStatic())
		return reg, nil
	}

	if cfg.HasBackendKey("anthropic") {
		model, err := cfg.Models.Resolve("reviewer")
		if err != nil {
			return nil, err
		}
		b, err := backend.NewAnthropic(cfg.AnthropicAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic backend: %w", err)
		}
		reg.RegisterBackend(b)
	}

	if cfg.HasBackendKey("openai") {
		model, err := cfg.Models.Resolve("second")
		if err != nil {
			return nil, err
		}
		b, err := backend.NewOpenAI(cfg.OpenAIAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai backend: %w", err)
		}
		reg.RegisterBackend(b)
	}

	if cfg.HasBackendKey("google") {
		model, err := cfg.Models.Resolve("research")
		if err != nil {
			return nil, err
		}
		b, err := backend.NewGoogle(cfg.GoogleAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create google backend: %w", err)
		}
		reg.RegisterBackend(b)
	}

	reg.RegisterBackend(backend.NewStatic())
	return reg, nil
}

func sortedAliases(aliases *config.ModelAliases) []string {
	if aliases == nil {
		return nil
	}
	names := make([]string, 0, len(aliases.Aliases))
	for name := range aliases.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
