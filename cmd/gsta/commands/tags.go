package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// TagStats represents the output of the tags command
type TagStats struct {
	Design    string   `json:"design"`
	Tags      int      `json:"tags"`
	ClkInfos  int      `json:"clk_infos"`
	TagGroups int      `json:"tag_groups"`
	Dump      []string `json:"dump,omitempty"`
}

// tagsCmd represents the tags command
var tagsCmd = &cobra.Command{
	Use:   "tags <design.yaml>",
	Short: "Show tag, clock info and tag group statistics",
	Long: `Runs the arrival search and prints how many tags, clock infos and
tag groups were interned. With --dump every tag is printed in its string form.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ss, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		if err := ss.findArrivals(cmd.Context()); err != nil {
			return err
		}

		stats := TagStats{
			Design:    ss.design.Name,
			Tags:      ss.search.TagCount(),
			ClkInfos:  ss.search.ClkInfoCount(),
			TagGroups: ss.search.TagGroupCount(),
		}
		if dump, _ := cmd.Flags().GetBool("dump"); dump {
			for _, tag := range ss.search.Tags() {
				stats.Dump = append(stats.Dump, fmt.Sprintf("%d %s", tag.Index(), tag))
			}
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Design:      %s\n", stats.Design)
		fmt.Printf("Tags:        %s\n", humanize.Comma(int64(stats.Tags)))
		fmt.Printf("Clock infos: %s\n", humanize.Comma(int64(stats.ClkInfos)))
		fmt.Printf("Tag groups:  %s\n", humanize.Comma(int64(stats.TagGroups)))
		for _, line := range stats.Dump {
			fmt.Println("  " + line)
		}
		return nil
	},
}

func init() {
	addSearchFlags(tagsCmd)
	tagsCmd.Flags().Bool("dump", false, "Print every tag")
	tagsCmd.Flags().Bool("json", false, "Output as JSON")
}
