package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ca-srg/prodsearch/internal/imagevec"
	"github.com/ca-srg/prodsearch/internal/metrics"
	"github.com/ca-srg/prodsearch/internal/search"
)

var (
	queryText      string
	queryImagePath string
	outputJSON     bool
	showQuery      bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one product search from the command line",
	Long: `
Run a single natural language product search and print the rendered results.

Examples:
  prodsearch query -q "wireless headphones under $100"
  prodsearch query -q "running shoes" --image ./shoe.jpg
  prodsearch query -q "sony tv between $300 and $800" --json --show-query
`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "Text query to search for (required)")
	queryCmd.Flags().StringVar(&queryImagePath, "image", "", "Path to an image to search with")
	queryCmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "Output results in JSON format")
	queryCmd.Flags().BoolVar(&showQuery, "show-query", false, "Include the OpenSearch query body in the output")

	_ = queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = metrics.WithSurface(ctx, metrics.SurfaceCLI)

	req := search.Request{Query: queryText}
	if queryImagePath != "" {
		upload, err := loadUpload(queryImagePath)
		if err != nil {
			return err
		}
		req.Image = upload
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	resp, err := a.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	return writeQueryResult(cmd.OutOrStdout(), resp)
}

type queryOutput struct {
	Results    json.RawMessage        `json:"results"`
	Strategy   string                 `json:"strategy"`
	Extraction string                 `json:"extraction"`
	Total      int64                  `json:"total"`
	Took       string                 `json:"took"`
	Labels     []string               `json:"image_labels,omitempty"`
	QueryUsed  map[string]interface{} `json:"query_used,omitempty"`
}

func writeQueryResult(w io.Writer, resp *search.Response) error {
	if outputJSON {
		results, err := json.Marshal(resp.Display)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		out := queryOutput{Results: results}
		if resp.Outcome != nil {
			out.Strategy = string(resp.Outcome.Strategy)
			out.Extraction = string(resp.Outcome.Extraction)
			out.Total = resp.Outcome.Total
			out.Took = resp.Outcome.Took.String()
			if showQuery {
				out.QueryUsed = resp.Outcome.QueryUsed
			}
		}
		if resp.Image != nil {
			out.Labels = resp.Image.Labels
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, resp.Display.String())
	if resp.Outcome != nil {
		fmt.Fprintf(w, "\nStrategy: %s (extraction: %s, %d total, %v)\n",
			resp.Outcome.Strategy, resp.Outcome.Extraction, resp.Outcome.Total, resp.Outcome.Took)
		if showQuery && resp.Outcome.QueryUsed != nil {
			body, err := json.MarshalIndent(resp.Outcome.QueryUsed, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal query: %w", err)
			}
			fmt.Fprintf(w, "\nQuery:\n%s\n", body)
		}
	}
	if resp.Image != nil && len(resp.Image.Labels) > 0 {
		fmt.Fprintf(w, "Image labels: %s\n", strings.Join(resp.Image.Labels, ", "))
	}
	return nil
}

func loadUpload(path string) (*imagevec.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	upload := &imagevec.Upload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}
	if !upload.IsImage() {
		return nil, fmt.Errorf("%s: %w", path, imagevec.ErrNotImage)
	}
	return upload, nil
}
