package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"realestate/internal/apperr"
)

type queryFlags struct {
	region   string
	from     string
	to       string
	page     int
	pageSize int
	limit    int
	filters  []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first month (YYYYMM) or day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last month or day")
	cmd.Flags().IntVar(&f.page, "page", 0, "first upstream page")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "rows per upstream page")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum records returned")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "tool argument as key=value; repeatable")
}

// args builds the flat parameter object, leaving unset flags out so tools
// that do not take them are not rejected.
func (f *queryFlags) args(region string) (map[string]any, error) {
	args := make(map[string]any)
	if region != "" {
		args["region"] = region
	}
	if f.from != "" {
		args["from"] = f.from
	}
	if f.to != "" {
		args["to"] = f.to
	}
	if f.page != 0 {
		args["page"] = f.page
	}
	if f.pageSize != 0 {
		args["page_size"] = f.pageSize
	}
	if f.limit != 0 {
		args["limit"] = f.limit
	}
	for _, pair := range f.filters {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		args[key] = strings.TrimSpace(value)
	}
	return args, nil
}

func (c *CLI) newQueryCmd() *cobra.Command {
	var flags queryFlags
	var out string
	cmd := &cobra.Command{
		Use:   "query <tool>",
		Short: "Run one tool and print its JSON result",
		Example: "  realestate query get_apartment_trades --region 강남구 --from 2024-03\n" +
			"  realestate query get_apt_subscription_results -f stat_kind=cmpetrt_area --from 202405",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			args, err := flags.args(flags.region)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.registry.Execute(ctx, positional[0], args)
				if emitErr := c.emit(cmd.OutOrStdout(), out, result); emitErr != nil {
					return emitErr
				}
				return err
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.region, "region", "", "region name or legal-dong code")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the result to this file instead of stdout")
	return cmd
}

// newExportCmd runs one tool for each region of a list and writes one file
// per region plus a meta.json index. A failing region is reported and
// skipped.
func (c *CLI) newExportCmd() *cobra.Command {
	var flags queryFlags
	var regionsCSV, regionsFile, outDir string
	cmd := &cobra.Command{
		Use:   "export <tool>",
		Short: "Run one tool over a list of regions and write JSON files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			regions := parseList(regionsCSV)
			if strings.TrimSpace(regionsFile) != "" {
				loaded, err := loadRegionList(regionsFile)
				if err != nil {
					return err
				}
				regions = append(regions, loaded...)
			}
			if len(regions) == 0 {
				return fmt.Errorf("no regions given; use --regions or --regions-file")
			}

			tool := positional[0]
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				meta := exportMeta{GeneratedAt: c.generatedAt(), Tool: tool}
				for _, region := range regions {
					args, err := flags.args(region)
					if err != nil {
						return err
					}
					result, err := a.registry.Execute(ctx, tool, args)
					if err != nil {
						kind := apperr.KindOf(err)
						if kind == apperr.KindUnknownCategory {
							return err
						}
						a.logger.Warn().Err(err).Str("region", region).Msg("export skipped region")
						meta.Failed = append(meta.Failed, region)
						continue
					}
					name := fileName(tool, region)
					if err := writeJSON(filepath.Join(outDir, name), exportFile{GeneratedAt: meta.GeneratedAt, Result: result}); err != nil {
						return err
					}
					meta.Files = append(meta.Files, name)
				}
				if err := writeJSON(filepath.Join(outDir, "meta.json"), meta); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "export complete (out=%s files=%d failed=%d)\n", outDir, len(meta.Files), len(meta.Failed))
				if len(meta.Files) == 0 {
					return fmt.Errorf("every region failed")
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&regionsCSV, "regions", "", "comma-separated region names or codes")
	cmd.Flags().StringVar(&regionsFile, "regions-file", "", "file with one region per line; # starts a comment")
	cmd.Flags().StringVarP(&outDir, "out", "o", "export", "output directory")
	return cmd
}

func (c *CLI) newRegionCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "region <name>",
		Short: "List legal-dong region candidates for a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			args := map[string]any{"query": strings.Join(positional, " ")}
			if limit != 0 {
				args["limit"] = limit
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.registry.Execute(ctx, "search_region_code", args)
				if emitErr := c.emit(cmd.OutOrStdout(), "", result); emitErr != nil {
					return emitErr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum candidates")
	return cmd
}

func (c *CLI) newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, tool := range a.registry.List() {
					fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
				}
				return w.Flush()
			})
		},
	}
}

func parseList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadRegionList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var regions []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		regions = append(regions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

func fileName(tool, region string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, region)
	return tool + "_" + safe + ".json"
}
