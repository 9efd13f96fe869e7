package main

import (
	"context"
	"fmt"

	"github.com/alvmarrod/profile-weaver/internal/messaging"
	"github.com/spf13/cobra"
)

// send delivers one message locally or to server_url and fails on error responses
func send(cmd *cobra.Command, req messaging.Request) (messaging.Response, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, closer, err := connect(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	resp, err := m.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := messaging.AsError(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Type, err)
	}
	return resp, nil
}

func newExportCmd() *cobra.Command {
	var toFile bool
	var filename string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print all stored profiles as CSV, or save them under download_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(cmd, messaging.Request{
				Type:               messaging.TypeExportCSV,
				BackgroundDownload: toFile,
				Filename:           filename,
			})
			if err != nil {
				return err
			}

			if toFile {
				cmd.Printf("Exported %v profiles to %v\n", resp["count"], resp["filename"])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp["csv"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&toFile, "save", false, "write the CSV to download_dir instead of stdout")
	cmd.Flags().StringVarP(&filename, "out", "o", "", "file name used with --save (default badoo-scrape-<timestamp>.csv)")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := send(cmd, messaging.Request{Type: messaging.TypeClearScraped}); err != nil {
				return err
			}
			cmd.Println("Cleared stored profiles")
			return nil
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many profiles are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(cmd, messaging.Request{Type: messaging.TypeGetCount})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp["count"])
			return nil
		},
	}
}

func newProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Show or set the proxy tag attached to uploads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:  "get",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(cmd, messaging.Request{Type: messaging.TypeGetProxy})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), orNone(resp["proxy"]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [proxy]",
		Short: "Set the proxy tag; omit the value to clear it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := messaging.Request{Type: messaging.TypeSaveProxy}
			if len(args) == 1 {
				req.Proxy = args[0]
			}
			if _, err := send(cmd, req); err != nil {
				return err
			}
			cmd.Println("Proxy saved")
			return nil
		},
	})

	return cmd
}

func newUploadURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-url",
		Short: "Show or set the endpoint that receives every stored batch",
	}

	cmd.AddCommand(&cobra.Command{
		Use:  "get",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(cmd, messaging.Request{Type: messaging.TypeGetUploadURL})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "url: %v\nauto-upload: %v\n", orNone(resp["uploadUrl"]), resp["autoUpload"])
			return nil
		},
	})

	var auto bool
	set := &cobra.Command{
		Use:   "set [url]",
		Short: "Set the upload endpoint; omit the value to clear it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := messaging.Request{Type: messaging.TypeSaveUploadURL, AutoUpload: auto}
			if len(args) == 1 {
				req.UploadURL = args[0]
			}
			if _, err := send(cmd, req); err != nil {
				return err
			}
			cmd.Println("Upload settings saved")
			return nil
		},
	}
	set.Flags().BoolVar(&auto, "auto", false, "upload every batch as it is stored")
	cmd.AddCommand(set)

	return cmd
}

func orNone(v interface{}) interface{} {
	if v == nil {
		return "(none)"
	}
	return v
}
