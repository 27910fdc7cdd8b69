package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"audioshare/core/media"
	"audioshare/storage"

	"github.com/spf13/cobra"
)

var (
	rootsStats  bool
	rootsPrefix string
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "列出已配置的根目录",
	Long:  `按 AUDIO_DIR 解析根目录并打印 slug、显示名、后端和路径，可选统计文件数和总大小。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := bootstrap()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return printRoots(ctx, cmd.OutOrStdout(), reg, rootsStats, rootsPrefix)
	},
}

func init() {
	rootCmd.AddCommand(rootsCmd)

	rootsCmd.Flags().BoolVarP(&rootsStats, "stats", "s", false, "统计每个根目录的文件数和总大小")
	rootsCmd.Flags().StringVarP(&rootsPrefix, "prefix", "p", "", "统计时只计算该前缀下的文件")

	rootsCmd.Example = `  # 列出根目录
  AUDIO_DIR="/srv/music:Music,/srv/podcasts" audioshare roots

  # 统计文件数和大小
  audioshare roots -s -p "albums/"`
}

func printRoots(ctx context.Context, out io.Writer, reg *media.Registry, withStats bool, prefix string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "SLUG\tNAME\tBACKEND\tPATH"
	if withStats {
		header += "\tFILES\tSIZE\tLAST MODIFIED"
	}
	fmt.Fprintln(tw, header)

	for _, root := range reg.Roots() {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", root.Slug, root.DisplayName, root.Backend.Kind(), root.AbsolutePath)
		if withStats {
			line += "\t" + statsColumns(ctx, root, prefix)
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func statsColumns(ctx context.Context, root media.VirtualRoot, prefix string) string {
	lister, ok := root.Backend.(storage.Lister)
	if !ok {
		return "-\t-\t-"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	_, stats, err := lister.List(ctx, root.AbsolutePath, prefix)
	if err != nil {
		return "error\t-\t" + err.Error()
	}
	last := "-"
	if !stats.LastModified.IsZero() {
		last = stats.LastModified.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%d\t%s\t%s", stats.TotalObjects, storage.FormatSize(stats.TotalSize), last)
}
