package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sta/pkg/design"
	"github.com/l3aro/go-sta/pkg/search"
)

// CheckOutput represents the output of the check command
type CheckOutput struct {
	Design     string `json:"design"`
	Pins       int    `json:"pins"`
	Edges      int    `json:"edges"`
	Corners    int    `json:"corners"`
	Clocks     int    `json:"clocks"`
	Exceptions int    `json:"exceptions"`
	Endpoints  int    `json:"endpoints"`
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <design.yaml>...",
	Short: "Validate design files",
	Long: `Parses and validates each design file, builds its timing graph and
levelizes it. Combinational loops are reported as warnings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		var outputs []CheckOutput
		var failed int
		for _, path := range args {
			out, err := checkDesign(path)
			if err != nil {
				logger.Error("design check failed", "file", path, "err", err)
				failed++
				continue
			}
			outputs = append(outputs, out)
			if !jsonOutput {
				fmt.Printf("%s: ok (%d pins, %d edges, %d clocks, %d exceptions, %d endpoints)\n",
					path, out.Pins, out.Edges, out.Clocks, out.Exceptions, out.Endpoints)
			}
		}
		if jsonOutput {
			data, err := json.MarshalIndent(outputs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d designs failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("json", false, "Output as JSON")
}

func checkDesign(path string) (CheckOutput, error) {
	d, err := design.Load(path)
	if err != nil {
		return CheckOutput{}, err
	}
	s, err := search.New(d.Graph, d.Sdc, d.Corners, search.WithLogger(logger.With("design", d.Name)))
	if err != nil {
		return CheckOutput{}, err
	}
	return CheckOutput{
		Design:     d.Name,
		Pins:       d.Graph.VertexCount(),
		Edges:      d.Graph.EdgeCount(),
		Corners:    d.Corners.Count(),
		Clocks:     len(d.Sdc.Clocks()),
		Exceptions: len(d.Sdc.Exceptions()),
		Endpoints:  len(s.Endpoints()),
	}, nil
}
