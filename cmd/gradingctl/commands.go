package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-grading-api/internal/app"
	"github.com/noah-isme/sma-grading-api/internal/dto"
)

func newRankCmd(opts *rootOptions) *cobra.Command {
	var req dto.CohortRankingRequest
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank an exam cohort",
		Example: `  gradingctl rank --exam 2024-T1-MID
  gradingctl rank --exam 2024-T1-MID --class form-2 --stream east --rank-by total_points`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ranking, err := a.Grading.CohortRanking(ctx, req)
				if err != nil {
					return err
				}
				return opts.printJSON(ranking)
			})
		},
	}
	cmd.Flags().StringVar(&req.ExamID, "exam", "", "Exam ID")
	cmd.Flags().StringVar(&req.ClassID, "class", "", "Restrict the cohort to a class")
	cmd.Flags().StringVar(&req.StreamID, "stream", "", "Restrict the cohort to a stream")
	cmd.Flags().StringVar(&req.RankBy, "rank-by", "", "mean_points, total_points or total_marks")
	cmd.Flags().BoolVar(&req.Refresh, "refresh", false, "Ignore cached rankings")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var req dto.StudentReportRequest
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show one student's report for an exam",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Grading.StudentReport(ctx, req)
				if err != nil {
					return err
				}
				return opts.printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&req.ExamID, "exam", "", "Exam ID")
	cmd.Flags().StringVar(&req.StudentID, "student", "", "Student ID")
	cmd.Flags().StringVar(&req.ClassID, "class", "", "Rank within a class")
	cmd.Flags().StringVar(&req.StreamID, "stream", "", "Rank within a stream")
	cmd.Flags().StringVar(&req.RankBy, "rank-by", "", "mean_points, total_points or total_marks")
	_ = cmd.MarkFlagRequired("exam")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newTrendCmd(opts *rootOptions) *cobra.Command {
	var studentID string
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show a student's progress across class levels and terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				series, err := a.Grading.StudentTrend(ctx, studentID)
				if err != nil {
					return err
				}
				return opts.printJSON(series)
			})
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "Student ID")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		req     dto.ExportRankingRequest
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a cohort ranking as CSV or PDF",
		Example: `  gradingctl export --exam 2024-T1-MID --format pdf
  gradingctl export --exam 2024-T1-MID --class form-2 --out - > ranking.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				file, err := a.Exports.ExportCohort(ctx, req)
				if err != nil {
					return err
				}
				if outPath == "-" {
					_, err = opts.out.Write(file.Content)
					return err
				}
				target := outPath
				if target == "" {
					target = file.Filename
				}
				if err := os.WriteFile(target, file.Content, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", target, len(file.Content))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.ExamID, "exam", "", "Exam ID")
	cmd.Flags().StringVar(&req.ClassID, "class", "", "Restrict the cohort to a class")
	cmd.Flags().StringVar(&req.StreamID, "stream", "", "Restrict the cohort to a stream")
	cmd.Flags().StringVar(&req.RankBy, "rank-by", "", "mean_points, total_points or total_marks")
	cmd.Flags().StringVar(&req.Format, "format", "csv", "csv or pdf")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: generated name, - for stdout)")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func newInvalidateCmd(opts *rootOptions) *cobra.Command {
	var examID string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached rankings after results change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Grading.InvalidateExam(ctx, examID)
				if err != nil {
					return err
				}
				return opts.printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&examID, "exam", "", "Exam ID")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}
