package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fieldcap/internal/client"
	"fieldcap/internal/record"
)

func newTestsCommand(ctx *commandContext) *cobra.Command {
	testsCmd := &cobra.Command{
		Use:   "tests",
		Short: "Inspect and manage submitted tests",
	}

	testsCmd.AddCommand(newTestsListCommand(ctx))
	testsCmd.AddCommand(newTestsShowCommand(ctx))
	testsCmd.AddCommand(newTestsDeleteCommand(ctx))

	return testsCmd
}

func newTestsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			tests, err := api.ListTests(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tests: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(tests) == 0 {
				fmt.Fprintln(out, "No tests recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(tests))
			for _, test := range tests {
				rows = append(rows, []string{
					test.TestID,
					testDevice(test),
					testLocation(test),
					string(test.Status),
					fmt.Sprintf("%d", len(test.Videos)),
					videoSize(test),
					humanize.Time(test.CreatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TEST", "DEVICE", "LOCATION", "STATUS", "VIDEOS", "SIZE", "CREATED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newTestsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <test-id>",
		Short: "Show one test with its videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			test, err := api.GetTest(cmd.Context(), args[0])
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("test %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("fetch test: %w", err)
			}
			printTest(cmd, test)
			return nil
		},
	}
}

func newTestsDeleteCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <test-id>",
		Short: "Delete a test and its stored videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deleting removes the record and every stored video; re-run with --force to confirm")
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := api.DeleteTest(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("test %s not found", args[0])
				}
				return fmt.Errorf("delete test: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation requirement")
	return cmd
}

func printTest(cmd *cobra.Command, test record.TestRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Test:      %s\n", test.TestID)
	fmt.Fprintf(out, "Status:    %s\n", test.Status)
	if test.User != nil {
		fmt.Fprintf(out, "Tester:    %s <%s>\n", test.User.DisplayName, test.User.Email)
	}
	fmt.Fprintf(out, "Location:  %s\n", testLocation(test))
	if test.Geo != nil && (test.Geo.Latitude != 0 || test.Geo.Longitude != 0) {
		fmt.Fprintf(out, "Position:  %.6f, %.6f (%s)\n", test.Geo.Latitude, test.Geo.Longitude, test.Geo.Source)
	}
	if meta := test.Metadata; meta != nil {
		fmt.Fprintf(out, "Device:    %s (%s)\n", meta.DeviceID, meta.DeviceType)
		fmt.Fprintf(out, "Cycle:     %s\n", meta.TestCycle)
		fmt.Fprintf(out, "Scene:     %s / %s\n", meta.Environment, meta.RoadType)
		if meta.Comments != "" {
			fmt.Fprintf(out, "Comments:  %s\n", meta.Comments)
		}
	}
	fmt.Fprintf(out, "Created:   %s\n", test.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Updated:   %s\n", test.UpdatedAt.Format(time.RFC3339))

	if len(test.Videos) == 0 {
		fmt.Fprintln(out, "Videos:    none")
		return
	}
	fmt.Fprintf(out, "Videos:    %d\n", len(test.Videos))
	for _, video := range test.Videos {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			video.FileName,
			humanize.IBytes(uint64(video.Size)),
			video.UploadedAt.Format(time.RFC3339))
	}
}

func testDevice(test record.TestRecord) string {
	if test.Metadata == nil || test.Metadata.DeviceID == "" {
		return "-"
	}
	return test.Metadata.DeviceID
}

func testLocation(test record.TestRecord) string {
	if test.Geo == nil {
		return record.UnknownPlace
	}
	city := strings.TrimSpace(test.Geo.City)
	state := strings.TrimSpace(test.Geo.State)
	if city == "" {
		city = record.UnknownPlace
	}
	if state == "" {
		state = record.UnknownPlace
	}
	return city + ", " + state
}

func videoSize(test record.TestRecord) string {
	var total int64
	for _, video := range test.Videos {
		total += video.Size
	}
	if total == 0 {
		return "-"
	}
	return humanize.IBytes(uint64(total))
}
